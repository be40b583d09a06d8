// Package loadgen drives a running consortium service with generated
// tenders and checks the rankings it builds.
package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/consortium/pkg/logger"
)

const directoryPermission = 0o750

// ErrNoResults is returned when no candidate was saved.
var ErrNoResults = errors.New("no results saved")

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadgen")

	log.Info(ctx, "starting consortium load run",
		logger.String("base_url", config.BaseURL),
		logger.Int("tenders", config.Tenders),
		logger.Int("candidates", config.Candidates),
		logger.Int("batch_size", config.BatchSize),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	c := newClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate tenders
	runID := strconv.FormatInt(time.Now().Unix(), 36)
	tenders := make([]string, config.Tenders)
	var all []Candidate
	var subs []*submission
	for i := range tenders {
		tenders[i] = "load-" + runID + "-" + strconv.Itoa(i)
		candidates := generateTender(tenders[i], config.Candidates)
		all = append(all, candidates...)
		subs = append(subs, splitBatches(tenders[i], candidates, config.BatchSize)...)
	}
	stats.CandidatesGenerated = len(all)

	// Step 3: Submit batches concurrently
	submitBatches(ctx, c, config, subs, stats)

	// Step 4: Wait for the workers
	awaitBatches(ctx, c, config, subs, stats)
	if stats.ResultsSaved == 0 {
		return stats, ErrNoResults
	}

	// Step 5: Verify rankings
	if err := verifyRankings(ctx, c, config, tenders, stats); err != nil {
		return stats, fmt.Errorf("ranking verification failed: %w", err)
	}

	// Step 6: Save candidates to file
	if config.OutputFile != "" {
		if err := saveCandidates(config.OutputFile, all); err != nil {
			log.Warn(ctx, "failed to save candidates to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveCandidates writes the generated candidates as a JSON array.
func saveCandidates(filename string, candidates []Candidate) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(candidates); err != nil {
		return fmt.Errorf("write candidates: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ResultsSaved+stats.ResultsFailed) / stats.Duration.Seconds()
	}
	logger.Named("loadgen").Info(ctx, "final statistics",
		logger.Int("candidates_generated", stats.CandidatesGenerated),
		logger.Int("batches_submitted", stats.BatchesSubmitted),
		logger.Int("batches_rejected", stats.BatchesRejected),
		logger.Int("results_saved", stats.ResultsSaved),
		logger.Int("results_failed", stats.ResultsFailed),
		logger.Int("rankings_checked", stats.RankingsChecked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("evaluations_per_second", perSecond),
	)
}
