package service

import (
	"context"
	"time"

	"github.com/okian/consortium/internal/adapters/repository"
	compliance "github.com/okian/consortium/internal/domain/compliance"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

// Evaluation outcomes reported to metrics.
const (
	outcomeOK           = "ok"
	outcomeNonCompliant = "noncompliant"
	outcomeFailed       = "failed"
	unknownLabel        = "unknown"
)

// Evaluate scores one consortium against the active rule tables.
func (s *Service) Evaluate(ctx context.Context, req evaluation.Request) (evaluation.EvaluationResult, error) {
	if !s.running() {
		return evaluation.EvaluationResult{Failed: true, Failure: ErrNotStarted.Error()}, ErrNotStarted
	}
	return s.evaluate(ctx, req)
}

func (s *Service) evaluate(ctx context.Context, req evaluation.Request) (evaluation.EvaluationResult, error) {
	start := time.Now()
	res, err := s.evaluator.Evaluate(req)
	took := time.Since(start)

	jurisdiction, tier := unknownLabel, unknownLabel
	if req.RuleKey.Valid() {
		jurisdiction, tier = string(req.RuleKey.Jurisdiction), string(req.RuleKey.Tier)
	}

	outcome := outcomeOK
	failures := res.Failures()
	switch {
	case res.Failed:
		outcome = outcomeFailed
	case len(failures) > 0:
		outcome = outcomeNonCompliant
	}
	metrics.RecordEvaluation(jurisdiction, tier, outcome, float64(took.Microseconds())/1000)

	if res.Failed {
		metrics.RecordError("evaluation", "failed")
		s.logger.Debug(ctx, "evaluation failed",
			logger.String("rule_key", req.RuleKey.String()),
			logger.Int("members", len(req.Members)),
			logger.Error(err),
		)
		return res, err
	}

	for _, d := range res.Degradations {
		metrics.RecordDegradedInput(string(d.Field))
	}
	for _, m := range res.CompanyDetails {
		metrics.RecordCreditBasis(string(m.BusinessScoreDetails.Basis))
	}
	for _, check := range failures {
		metrics.RecordComplianceFailure(check)
	}
	for _, ce := range res.ComplianceErrors {
		s.logger.Warn(ctx, "compliance check errored",
			logger.String("check", ce.Check),
			logger.String("message", ce.Message),
		)
	}

	s.logger.Debug(ctx, "evaluated consortium",
		logger.String("rule_key", res.RuleKey),
		logger.Int("members", len(res.CompanyDetails)),
		logger.Float64("expected_score", res.ExpectedScore),
		logger.Int("degradations", len(res.Degradations)),
		logger.Any("failures", failures),
		logger.Duration("took", took),
	)
	return res, err
}

// CheckShareLimit reports the permissible share of every member.
func (s *Service) CheckShareLimit(ctx context.Context, members []model.ConsortiumMember, bidAmount float64) []compliance.ShareCheckResult {
	if !s.running() {
		return nil
	}
	res := s.evaluator.CheckShareLimit(members, bidAmount)
	problems := 0
	for _, r := range res {
		if r.IsProblem {
			problems++
			metrics.RecordShareCheckProblem()
		}
	}
	s.logger.Debug(ctx, "share limits checked",
		logger.Int("members", len(members)),
		logger.Float64("bid_amount", bidAmount),
		logger.Int("problems", problems),
	)
	return res
}

// RuleSets lists the active rule sets.
func (s *Service) RuleSets(_ context.Context) []evaluation.RuleSetSummary {
	if !s.running() {
		return nil
	}
	sets := s.rules.get().List()
	out := make([]evaluation.RuleSetSummary, 0, len(sets))
	for _, rs := range sets {
		out = append(out, evaluation.Summarize(rs))
	}
	return out
}

// SaveResult stores a successful evaluation.
func (s *Service) SaveResult(ctx context.Context, rec repository.Record) (string, error) {
	if !s.running() {
		return "", ErrNotStarted
	}
	id, err := s.store.Save(ctx, rec)
	if err != nil {
		return "", err
	}
	s.logger.Debug(ctx, "result saved",
		logger.String("id", id),
		logger.String("tender_id", rec.TenderID),
		logger.Float64("expected_score", rec.Result.ExpectedScore),
	)
	return id, nil
}

// GetResult returns a stored result.
func (s *Service) GetResult(ctx context.Context, id string) (repository.Record, error) {
	if !s.running() {
		return repository.Record{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Ranking returns the top n stored results of a tender.
func (s *Service) Ranking(ctx context.Context, tenderID string, n int) ([]repository.Entry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.Ranking(ctx, tenderID, n)
}

// batchEvaluator lets workers evaluate through the service so batch jobs
// are counted like direct requests.
type batchEvaluator struct {
	s *Service
}

func (b batchEvaluator) Evaluate(req evaluation.Request) (evaluation.EvaluationResult, error) {
	return b.s.evaluate(context.Background(), req)
}
