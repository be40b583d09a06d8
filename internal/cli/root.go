// Package cli implements the consortium command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/okian/consortium/internal/domain/ruleset"
	"github.com/okian/consortium/pkg/logger"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	formatJSON  = "json"
	formatTable = "table"
)

// options are the flags shared by every command.
type options struct {
	rulesFile string
	logLevel  string
	format    string
}

// NewRootCommand builds the command tree. Output goes to out and logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "consortium",
		Short: "Consortium bid eligibility and scoring engine",
		Long: `consortium scores joint bids for Korean public construction tenders.

It computes management and performance scores of a consortium, checks the
capacity, regional duty and solo bid rules, and reports the permissible
share of every member.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := logger.Init(logger.WithWriter(errOut)); err != nil {
				return err
			}
			return logger.SetLevelString(o.logLevel)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&o.rulesFile, "rules", "", "Rule table YAML file (default: embedded tables)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&o.format, "format", formatJSON, "Output format (json|table)")

	root.AddCommand(
		newEvaluateCommand(o),
		newShareCheckCommand(o),
		newRuleSetsCommand(o),
		newLoadTestCommand(),
	)
	return root
}

func (o *options) registry() (*ruleset.Registry, error) {
	if o.rulesFile == "" {
		return ruleset.Default()
	}
	return ruleset.LoadFile(o.rulesFile)
}

func (o *options) checkFormat() error {
	switch o.format {
	case formatJSON, formatTable:
		return nil
	default:
		return fmt.Errorf("unknown format %q: want json or table", o.format)
	}
}
