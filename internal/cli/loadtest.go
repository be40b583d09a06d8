package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/consortium/internal/loadgen"
	"github.com/spf13/cobra"
)

// Load test defaults.
const (
	defaultTenders    = 5
	defaultCandidates = 200
	defaultBatchSize  = 50
	defaultTopN       = 50
	defaultTimeout    = 30 * time.Second
	defaultWait       = 2 * time.Minute
	defaultRunTimeout = 10 * time.Minute
)

func newLoadTestCommand() *cobra.Command {
	config := &loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running service with generated tenders",
		Long: `Loadtest generates consortiums for a set of tenders, submits them as
batches, waits for the workers and verifies every tender ranking.

Examples:
  consortium loadtest
  consortium loadtest --url http://localhost:8080 --tenders 20 --candidates 500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if config.Tenders < 1 || config.Candidates < 1 || config.BatchSize < 1 || config.Workers < 1 {
				return fmt.Errorf("tenders, candidates, batch-size and workers must be positive")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()

			stats, err := loadgen.Run(ctx, config)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d results in %d batches across %d tenders in %s\n",
				stats.ResultsSaved, stats.BatchesSubmitted, stats.RankingsChecked, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&config.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&config.Tenders, "tenders", defaultTenders, "Number of tenders")
	f.IntVar(&config.Candidates, "candidates", defaultCandidates, "Consortiums per tender")
	f.IntVar(&config.BatchSize, "batch-size", defaultBatchSize, "Candidates per batch")
	f.IntVar(&config.TopN, "top", defaultTopN, "Ranking entries verified per tender")
	f.IntVar(&config.Workers, "workers", runtime.NumCPU(), "Concurrent submitters")
	f.DurationVar(&config.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&config.Wait, "wait", defaultWait, "How long to wait for batches")
	f.StringVar(&config.OutputFile, "output", "", "Write generated candidates to this JSON file")
	f.BoolVar(&config.Verbose, "verbose", false, "Log every accepted batch")
	return cmd
}
