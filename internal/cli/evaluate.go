package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"github.com/okian/consortium/pkg/logger"
	"github.com/spf13/cobra"
)

// ErrNonCompliant is returned when a consortium evaluates but fails a
// compliance check and --strict is set.
var ErrNonCompliant = errors.New("consortium is not compliant")

func newEvaluateCommand(o *options) *cobra.Command {
	var (
		input     string
		strict    bool
		tolerance float64
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a consortium and run the compliance checks",
		Long: `Evaluate reads a consortium request in YAML or JSON and prints the
auditable evaluation result.

Examples:
  consortium evaluate -f bid.yaml
  consortium evaluate -f bid.json --format table --strict
  cat bid.yaml | consortium evaluate -f -`,
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

			res, err := evaluation.New(reg, evaluation.WithShareTolerance(tolerance)).Evaluate(req)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			logger.Named("cli").Debug(cmd.Context(), "evaluated",
				logger.String("rule_key", res.RuleKey),
				logger.Float64("expected_score", res.ExpectedScore),
			)

			if o.format == formatTable {
				err = writeResultTable(cmd.OutOrStdout(), res)
			} else {
				err = writeJSON(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return err
			}
			if failures := res.Failures(); strict && len(failures) > 0 {
				return fmt.Errorf("%w: %s", ErrNonCompliant, strings.Join(failures, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "", "Request file (YAML or JSON, - for stdin)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when a compliance check fails")
	cmd.Flags().Float64Var(&tolerance, "share-tolerance", 1e-4, "Tolerance of strict share sums")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func passMark(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}

func writeResultTable(out io.Writer, res evaluation.EvaluationResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Rule set\t%s (%s)\n", res.RuleKey, res.RuleName)
	fmt.Fprintf(w, "Announcement\t%s\n", res.AnnouncementDate)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MEMBER\tROLE\tSHARE\tBASIS\tMANAGEMENT\tWEIGHTED PERF")
	for _, m := range res.CompanyDetails {
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%s\t%.4f\t%.2f\n",
			m.Name, m.Role, m.Share*100, m.BusinessScoreDetails.Basis,
			m.BusinessScoreDetails.Total, m.WeightedPerformance)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Management score\t%.4f\n", res.FinalBusinessScore)
	fmt.Fprintf(w, "Performance ratio\t%.2f%%\n", res.PerformanceRatio)
	fmt.Fprintf(w, "Performance score\t%.4f\n", res.FinalPerformanceScore)
	fmt.Fprintf(w, "Bid score\t%.4f\n", res.BidScore)
	fmt.Fprintf(w, "Expected score\t%.4f\n", res.ExpectedScore)
	fmt.Fprintf(w, "Share sum\t%.2f%%\n", res.ShareSumPercent)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Capacity\t%s\n", passMark(res.SipyungCheck.Passed))
	for _, m := range res.IndividualSipyung {
		if !m.Passed {
			fmt.Fprintf(w, "  %s\t%s\n", m.Name, m.Message)
		}
	}
	fmt.Fprintf(w, "Region\t%s (%s%%)\n", passMark(res.RegionCheck.Passed), res.RegionCheck.SumPercentText)
	for _, s := range res.SoloBid {
		if s.Possible {
			fmt.Fprintf(w, "Solo bid possible\t%s: %s\n", s.Name, s.Reason)
		}
	}
	for _, a := range res.Advisories {
		fmt.Fprintf(w, "%s\t%s %s\n", a.Check, passMark(a.Passed), a.Message)
	}
	for _, e := range res.ComplianceErrors {
		fmt.Fprintf(w, "%s\terror: %s\n", e.Check, e.Message)
	}
	for _, d := range res.Degradations {
		fmt.Fprintf(w, "Degraded\t%s %s (%s)\n", d.Company, d.Field, d.Reason)
	}
	return w.Flush()
}
