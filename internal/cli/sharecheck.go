package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	compliance "github.com/okian/consortium/internal/domain/compliance"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"github.com/spf13/cobra"
)

func newShareCheckCommand(o *options) *cobra.Command {
	var (
		input string
		bid   float64
	)
	cmd := &cobra.Command{
		Use:   "share-check",
		Short: "Report the permissible share of every member",
		Long: `Share-check reads the members and price of a request and reports the
maximum share each member may hold for the bid amount. Without --bid the
amount is derived from the price section.

Examples:
  consortium share-check -f bid.yaml
  consortium share-check -f bid.yaml --bid 2500000000 --format table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.checkFormat(); err != nil {
				return err
			}
			req, err := readRequest(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			reg, err := o.registry()
			if err != nil {
				return err
			}
			amount := bid
			if amount <= 0 {
				amount = req.Price.BidAmount()
			}
			res := evaluation.New(reg).CheckShareLimit(req.Members, amount)
			if o.format == formatTable {
				return writeShareTable(cmd.OutOrStdout(), res)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "", "Request file (YAML or JSON, - for stdin)")
	cmd.Flags().Float64Var(&bid, "bid", 0, "Bid amount (default: derived from the price section)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func writeShareTable(out io.Writer, res []compliance.ShareCheckResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEMBER\tROLE\tSHARE\tMAX SHARE\tDIFF\tSTATUS")
	for _, r := range res {
		status := "ok"
		if r.IsProblem {
			status = "over limit"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%.2f%%\t%.2f\t%s\n",
			r.Name, r.Role, r.InputSharePercent, r.MaxSharePercent, r.Difference, status)
	}
	return w.Flush()
}
