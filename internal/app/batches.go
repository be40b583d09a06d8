package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/consortium/internal/adapters/http/api"
	"github.com/okian/consortium/internal/adapters/mq/queue"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

// batch is the mutable progress of one submission.
type batch struct {
	id         string
	tenderID   string
	candidates []string
	resultIDs  []string
	errs       []api.BatchError
	completed  int
	failed     int
	started    bool
}

func (b *batch) status() api.BatchStatus {
	st := api.BatchStatus{
		ID:        b.id,
		TenderID:  b.tenderID,
		Status:    api.BatchQueued,
		Total:     len(b.candidates),
		Completed: b.completed,
		Failed:    b.failed,
		ResultIDs: make([]string, 0, b.completed),
		Errors:    append([]api.BatchError{}, b.errs...),
	}
	for _, id := range b.resultIDs {
		if id != "" {
			st.ResultIDs = append(st.ResultIDs, id)
		}
	}
	switch {
	case b.completed+b.failed >= len(b.candidates):
		st.Status = api.BatchDone
	case b.started:
		st.Status = api.BatchRunning
	}
	return st
}

// batchTracker records batch progress and implements worker.Reporter.
// It remembers at most max batches and forgets the oldest first.
type batchTracker struct {
	mu    sync.Mutex
	max   int
	items map[string]*batch
	order []string
}

func newBatchTracker(maxBatches int) *batchTracker {
	return &batchTracker{max: maxBatches, items: make(map[string]*batch)}
}

func (t *batchTracker) add(b *batch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[b.id] = b
	t.order = append(t.order, b.id)
	for t.max > 0 && len(t.order) > t.max {
		delete(t.items, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *batchTracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *batchTracker) get(id string) (api.BatchStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.items[id]
	if !ok {
		return api.BatchStatus{}, false
	}
	return b.status(), true
}

// fail marks the candidates from index on as not queued.
func (t *batchTracker) fail(id string, from int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.items[id]
	if !ok {
		return
	}
	for i := from; i < len(b.candidates); i++ {
		b.failed++
		b.errs = append(b.errs, api.BatchError{Index: i, Candidate: b.candidates[i], Message: err.Error()})
	}
}

// Len returns the number of remembered batches.
func (t *batchTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Report implements worker.Reporter.
func (t *batchTracker) Report(_ context.Context, job queue.Job, resultID string, err error) { //nolint:gocritic // hugeParam: Job arrives by value
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.items[job.BatchID]
	if !ok || job.Index < 0 || job.Index >= len(b.candidates) {
		return
	}
	b.started = true
	if err != nil {
		b.failed++
		b.errs = append(b.errs, api.BatchError{Index: job.Index, Candidate: job.Candidate, Message: err.Error()})
		return
	}
	b.completed++
	b.resultIDs[job.Index] = resultID
}

// SubmitBatch queues every candidate of sub. A repeated idempotency key
// returns the batch it first created.
func (s *Service) SubmitBatch(ctx context.Context, sub api.BatchSubmission) (api.BatchStatus, error) {
	if !s.running() {
		return api.BatchStatus{}, ErrNotStarted
	}

	id := uuid.NewString()
	if prev, seen := s.deduper.Claim(ctx, sub.IdempotencyKey, id); seen {
		st, ok := s.batches.get(prev)
		if !ok {
			st = api.BatchStatus{ID: prev, TenderID: sub.TenderID, Status: api.BatchDone}
		}
		st.Duplicate = true
		s.logger.Debug(ctx, "duplicate batch submission",
			logger.String("idempotency_key", sub.IdempotencyKey),
			logger.String("batch_id", prev),
		)
		return st, nil
	}

	if free := s.queue.Free(ctx); free < len(sub.Candidates) {
		s.deduper.Release(ctx, sub.IdempotencyKey)
		metrics.RecordQueueRejected("backpressure")
		return api.BatchStatus{}, fmt.Errorf("%w: %d candidates, %d free queue slots", api.ErrBackpressure, len(sub.Candidates), free)
	}

	b := &batch{
		id:         id,
		tenderID:   sub.TenderID,
		candidates: make([]string, len(sub.Candidates)),
		resultIDs:  make([]string, len(sub.Candidates)),
	}
	for i, c := range sub.Candidates {
		b.candidates[i] = c.Candidate
	}
	s.batches.add(b)

	for i, c := range sub.Candidates {
		err := s.queue.Enqueue(ctx, queue.Job{
			BatchID:   id,
			Index:     i,
			TenderID:  sub.TenderID,
			Candidate: c.Candidate,
			Request:   c.Request,
		})
		if err == nil {
			continue
		}
		if i == 0 {
			s.batches.remove(id)
			s.deduper.Release(ctx, sub.IdempotencyKey)
			if errors.Is(err, queue.ErrFull) {
				return api.BatchStatus{}, fmt.Errorf("%w: %w", api.ErrBackpressure, err)
			}
			return api.BatchStatus{}, fmt.Errorf("submit batch: %w", err)
		}
		// The queue filled between the check and the enqueue. Jobs already
		// queued still run, the rest are reported as failed.
		s.batches.fail(id, i, err)
		s.logger.Warn(ctx, "batch partially queued",
			logger.String("batch_id", id),
			logger.Int("queued", i),
			logger.Int("total", len(sub.Candidates)),
			logger.Error(err),
		)
		break
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))

	s.logger.Info(ctx, "batch queued",
		logger.String("batch_id", id),
		logger.String("tender_id", sub.TenderID),
		logger.Int("candidates", len(sub.Candidates)),
	)
	st, _ := s.batches.get(id)
	return st, nil
}

// Batch returns the progress of a submitted batch.
func (s *Service) Batch(_ context.Context, id string) (api.BatchStatus, error) {
	if !s.running() {
		return api.BatchStatus{}, ErrNotStarted
	}
	st, ok := s.batches.get(id)
	if !ok {
		return api.BatchStatus{}, fmt.Errorf("%w: batch %s", api.ErrNotFound, id)
	}
	return st, nil
}
