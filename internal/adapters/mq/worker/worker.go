// Package worker evaluates queued batch jobs and saves their results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/consortium/internal/adapters/mq/queue"
	"github.com/okian/consortium/internal/adapters/repository"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job outcomes reported to metrics.
const (
	OutcomeSaved  = "saved"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Evaluator scores one request.
type Evaluator interface {
	Evaluate(req evaluation.Request) (evaluation.EvaluationResult, error)
}

// Saver stores an evaluation result.
type Saver interface {
	Save(ctx context.Context, rec repository.Record) (string, error)
}

// Reporter is told how each job ended. resultID is empty when err is set.
type Reporter interface {
	Report(ctx context.Context, job queue.Job, resultID string, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, queue.Job, string, error) {}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	saver     Saver
	reporter  Reporter
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, ev Evaluator, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		evaluator: ev,
		saver:     saver,
		reporter:  nopReporter{},
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("batch_id", job.BatchID),
					logger.Int("index", job.Index),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process evaluates one job and saves a successful result.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) (err error) { //nolint:gocritic // hugeParam: Job arrives by value
	start := time.Now()
	outcome := OutcomeSaved
	var id string
	defer func() {
		metrics.RecordJob(outcome, float64(time.Since(start).Microseconds())/1000)
		w.reporter.Report(ctx, job, id, err)
	}()

	res, evalErr := w.evaluator.Evaluate(job.Request)
	if evalErr != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("evaluate %s/%d: %w", job.BatchID, job.Index, evalErr)
	}

	id, err = w.saver.Save(ctx, repository.Record{
		TenderID:    job.TenderID,
		Candidate:   job.Candidate,
		Fingerprint: job.Request.Fingerprint(),
		Result:      res,
	})
	if err != nil {
		outcome = OutcomeError
		metrics.RecordError("worker", "save")
		return fmt.Errorf("save %s/%d: %w", job.BatchID, job.Index, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, q Queue, ev Evaluator, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, ev, saver, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue so no new jobs arrive, then waits for every
// worker to drain what is left or for the timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
