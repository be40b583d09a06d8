// Package api exposes the consortium engine over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/okian/consortium/internal/adapters/repository"
	compliance "github.com/okian/consortium/internal/domain/compliance"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

const (
	maxBodyBytes        = 4 << 20
	defaultRankingLimit = 10
	defaultMaxBatchSize = 500
	defaultMaxRankLimit = 1000
)

// Dependencies are the service operations the HTTP handlers call.
type Dependencies interface {
	Evaluate(ctx context.Context, req evaluation.Request) (evaluation.EvaluationResult, error)
	CheckShareLimit(ctx context.Context, members []model.ConsortiumMember, bidAmount float64) []compliance.ShareCheckResult
	RuleSets(ctx context.Context) []evaluation.RuleSetSummary

	SaveResult(ctx context.Context, rec repository.Record) (string, error)
	GetResult(ctx context.Context, id string) (repository.Record, error)
	Ranking(ctx context.Context, tenderID string, n int) ([]repository.Entry, error)

	// SubmitBatch queues every candidate or none. It returns ErrBackpressure
	// when the queue cannot take the whole batch.
	SubmitBatch(ctx context.Context, sub BatchSubmission) (BatchStatus, error)
	Batch(ctx context.Context, id string) (BatchStatus, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBatchSize caps the number of candidates per batch.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithMaxRankingLimit caps the limit query parameter of ranking requests.
func WithMaxRankingLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps            Dependencies
	validate        *validator.Validate
	maxBatchSize    int
	maxRankingLimit int

	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	evaluationHandler *EvaluationHandler
	resultsHandler    *ResultsHandler
	batchesHandler    *BatchesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		validate:        newValidator(),
		maxBatchSize:    defaultMaxBatchSize,
		maxRankingLimit: defaultMaxRankLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.evaluationHandler = &EvaluationHandler{deps: deps, validate: s.validate}
	s.resultsHandler = &ResultsHandler{deps: deps, validate: s.validate, maxLimit: s.maxRankingLimit}
	s.batchesHandler = &BatchesHandler{deps: deps, validate: s.validate, maxSize: s.maxBatchSize}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /evaluate", MetricsMiddleware(s.evaluationHandler.HandleEvaluate, "evaluate"))
	mux.HandleFunc("POST /share-check", MetricsMiddleware(s.evaluationHandler.HandleShareCheck, "share_check"))
	mux.HandleFunc("GET /rulesets", MetricsMiddleware(s.evaluationHandler.HandleRuleSets, "rulesets"))

	mux.HandleFunc("POST /results", MetricsMiddleware(s.resultsHandler.HandleSave, "results_save"))
	mux.HandleFunc("GET /results/{id}", MetricsMiddleware(s.resultsHandler.HandleGet, "results_get"))
	mux.HandleFunc("GET /tenders/{id}/ranking", MetricsMiddleware(s.resultsHandler.HandleRanking, "ranking"))

	mux.HandleFunc("POST /batches", MetricsMiddleware(s.batchesHandler.HandleSubmit, "batches_submit"))
	mux.HandleFunc("GET /batches/{id}", MetricsMiddleware(s.batchesHandler.HandleGet, "batches_get"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Named("api").Error(context.Background(), "encode response", logger.Int("status", status), logger.Error(err))
		metrics.RecordError("http", "encode")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "response could not be encoded"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, validationMessage(err))
	}
	return nil
}

// validationMessage reports the first failing field.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Sprintf("validation error: %s - %s", ve[0].Namespace(), ve[0].Tag())
	}
	return "validation error: invalid request"
}

// writeDomainError maps engine and store errors to status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", err)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case ruleset.IsConfigurationError(err):
		writeError(w, http.StatusUnprocessableEntity, "configuration_error", err)
	case errors.Is(err, evaluation.ErrNoMembers), errors.Is(err, evaluation.ErrShareSumMismatch),
		errors.Is(err, repository.ErrInvalidRecord):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, repository.ErrNotFound)
}
