// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/consortium/internal/adapters/mq/queue"
	"github.com/okian/consortium/internal/adapters/mq/worker"
	"github.com/okian/consortium/internal/adapters/repository"
	"github.com/okian/consortium/internal/domain/dedupe"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

// Service implements the API dependencies of the consortium engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	rules     *rules
	evaluator *evaluation.Evaluator
	store     repository.Store
	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool
	batches   *batchTracker

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxRankingLimit int
	shareTolerance  float64
	rulesFile       string
	watchRules      bool
	checks          []evaluation.Option

	// State
	started bool
	cancel  context.CancelFunc
	watchWG sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of batch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRankingLimit caps ranking requests at the store.
func WithMaxRankingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// WithShareTolerance sets the tolerance of strict share sums.
func WithShareTolerance(tol float64) Option {
	return func(s *Service) {
		if tol > 0 {
			s.shareTolerance = tol
		}
	}
}

// WithRulesFile loads rule tables from path instead of the embedded ones.
// With watch set the file is reloaded on change.
func WithRulesFile(path string, watch bool) Option {
	return func(s *Service) {
		s.rulesFile = path
		s.watchRules = watch && path != ""
	}
}

// WithCheck adds an advisory check to every evaluation.
func WithCheck(name string, c evaluation.Check) Option {
	return func(s *Service) {
		s.checks = append(s.checks, evaluation.WithCheck(name, c))
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      50_000,
		maxRankingLimit: 1000,
		shareTolerance:  1e-4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the rule tables and starts the batch workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	reg, err := loadRegistry(s.rulesFile)
	if err != nil {
		return err
	}
	s.rules = newRules(reg)
	metrics.UpdateRuleSets(reg.Len())

	evalOpts := append([]evaluation.Option{evaluation.WithShareTolerance(s.shareTolerance)}, s.checks...)
	s.evaluator = evaluation.New(s.rules, evalOpts...)
	s.store = repository.NewTreapStore(repository.WithMaxLimit(s.maxRankingLimit))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.batches = newBatchTracker(s.dedupeSize)

	// Background work outlives the start context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = worker.NewPool(s.workerCount, s.queue, batchEvaluator{s}, s.store,
		worker.WithReporter(s.batches),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(runCtx)

	if s.watchRules {
		s.watchWG.Add(1)
		go func() {
			defer s.watchWG.Done()
			s.watch(runCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "consortium service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("rule_sets", reg.Len()),
		logger.String("rules_file", s.rulesFile),
		logger.Bool("watch_rules", s.watchRules),
	)
	return nil
}

// Stop drains the batch queue and stops background work.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping consortium service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.watchWG.Wait()

	s.started = false
	if err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "consortium service stopped")
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"worker_count":   s.workerCount,
		"queue_capacity": s.queueSize,
		"dedupe_size":    s.dedupeSize,
		"rules_file":     s.rulesFile,
		"watch_rules":    s.watchRules,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	saved := s.store.Count(ctx)
	ruleSets := s.rules.get().Len()

	stats["queue_length"] = queueLen
	stats["saved_results"] = saved
	stats["rule_sets"] = ruleSets
	stats["batches"] = s.batches.Len()
	stats["idempotency_keys"] = s.deduper.Size()

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateSavedResults(saved)
	metrics.UpdateRuleSets(ruleSets)
	return stats
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
