package cli

import (
	"fmt"
	"text/tabwriter"

	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"github.com/spf13/cobra"
)

func newRuleSetsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rulesets",
		Short: "List the loaded rule sets",
		Long: `Rulesets validates the rule tables and lists every rule set they define.
Use --rules to check a table file before deploying it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.checkFormat(); err != nil {
				return err
			}
			reg, err := o.registry()
			if err != nil {
				return err
			}
			sets := make([]evaluation.RuleSetSummary, 0, reg.Len())
			for _, rs := range reg.List() {
				sets = append(sets, evaluation.Summarize(rs))
			}
			if o.format != formatTable {
				return writeJSON(cmd.OutOrStdout(), sets)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tMETHOD\tBASE\tMGMT CAP\tPERF CAP\tTOTAL CAP")
			for _, s := range sets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%g\n",
					s.Key, s.Name, s.PerformanceMethod, s.PerformanceBaseField,
					s.ManagementCap, s.PerformanceCap, s.TotalCap)
			}
			return w.Flush()
		},
	}
}
