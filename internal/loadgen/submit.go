package loadgen

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/consortium/pkg/logger"
)

const (
	maxSubmitAttempts = 5
	retryBackoff      = 200 * time.Millisecond
	pollInterval      = 100 * time.Millisecond
)

// submission is one batch sent to the service.
type submission struct {
	body   batchSubmission
	status batchStatus
	err    error
}

// splitBatches cuts the candidates of one tender into batches of size.
func splitBatches(tenderID string, candidates []Candidate, size int) []*submission {
	var out []*submission
	for start := 0; start < len(candidates); start += size {
		end := min(start+size, len(candidates))
		sub := &submission{body: batchSubmission{IdempotencyKey: uuid.NewString(), TenderID: tenderID}}
		for _, c := range candidates[start:end] {
			sub.body.Candidates = append(sub.body.Candidates, batchCandidate{Candidate: c.Candidate, Request: c.Request})
		}
		out = append(out, sub)
	}
	return out
}

// submitBatches posts every batch with config.Workers submitters. A 429 is
// retried with a growing backoff using the same idempotency key.
func submitBatches(ctx context.Context, c *client, config *Config, subs []*submission, stats *Stats) {
	log := logger.Named("loadgen")
	log.Info(ctx, "submitting batches", logger.Int("batches", len(subs)), logger.Int("workers", config.Workers))

	var submitted, rejected int64
	ch := make(chan *submission, config.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range ch {
				sub.err = submitOne(ctx, c, sub)
				if sub.err != nil {
					atomic.AddInt64(&rejected, 1)
					log.Warn(ctx, "batch rejected",
						logger.String("tender_id", sub.body.TenderID),
						logger.Error(sub.err),
					)
					continue
				}
				atomic.AddInt64(&submitted, 1)
				if config.Verbose {
					log.Info(ctx, "batch accepted",
						logger.String("batch_id", sub.status.ID),
						logger.Int("candidates", sub.status.Total),
					)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- sub:
			}
		}
	}()
	wg.Wait()

	stats.BatchesSubmitted = int(submitted)
	stats.BatchesRejected = int(rejected)
}

func submitOne(ctx context.Context, c *client, sub *submission) error {
	var err error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		_, err = c.do(ctx, http.MethodPost, "/batches", sub.body, &sub.status)
		var apiErr *apiError
		if err == nil || !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

// awaitBatches polls every accepted batch until it is done or config.Wait
// passes, then totals the saved and failed candidates.
func awaitBatches(ctx context.Context, c *client, config *Config, subs []*submission, stats *Stats) {
	deadline := time.Now().Add(config.Wait)
	for _, sub := range subs {
		if sub.err != nil {
			continue
		}
		for sub.status.Status != "done" && time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			if _, err := c.do(ctx, http.MethodGet, "/batches/"+sub.status.ID, nil, &sub.status); err != nil {
				logger.Named("loadgen").Warn(ctx, "batch poll failed",
					logger.String("batch_id", sub.status.ID),
					logger.Error(err),
				)
			}
		}
		stats.ResultsSaved += sub.status.Completed
		stats.ResultsFailed += sub.status.Failed
		if sub.status.Status != "done" {
			logger.Named("loadgen").Warn(ctx, "batch unfinished at deadline",
				logger.String("batch_id", sub.status.ID),
				logger.String("progress", strconv.Itoa(sub.status.Completed+sub.status.Failed)+"/"+strconv.Itoa(sub.status.Total)),
			)
		}
	}
}
