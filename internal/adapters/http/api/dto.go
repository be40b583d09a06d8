package api

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	model "github.com/okian/consortium/internal/domain/model"
)

// shareCheckRequest is the body of POST /share-check. When BidAmount is
// zero it is derived from Price.
type shareCheckRequest struct {
	Members   []model.ConsortiumMember `json:"members" validate:"required,min=1,dive"`
	BidAmount float64                  `json:"bid_amount" validate:"gte=0"`
	Price     model.PriceContext       `json:"price"`
}

// saveResultRequest is the body of POST /results. The request is evaluated
// server side so stored scores always match the active rule tables.
type saveResultRequest struct {
	TenderID  string             `json:"tender_id" validate:"required,max=128"`
	Candidate string             `json:"candidate" validate:"max=256"`
	Request   evaluation.Request `json:"request"`
}

type saveResultResponse struct {
	ID     string                      `json:"id"`
	Result evaluation.EvaluationResult `json:"result"`
}

// BatchCandidate is one consortium of a batch.
type BatchCandidate struct {
	Candidate string             `json:"candidate" validate:"required,max=256"`
	Request   evaluation.Request `json:"request"`
}

// BatchSubmission is the body of POST /batches.
type BatchSubmission struct {
	IdempotencyKey string           `json:"idempotency_key" validate:"required,max=128"`
	TenderID       string           `json:"tender_id" validate:"required,max=128"`
	Candidates     []BatchCandidate `json:"candidates" validate:"required,min=1,dive"`
}

// Batch states.
const (
	BatchQueued  = "queued"
	BatchRunning = "running"
	BatchDone    = "done"
)

// BatchError reports a candidate that produced no saved result.
type BatchError struct {
	Index     int    `json:"index"`
	Candidate string `json:"candidate"`
	Message   string `json:"message"`
}

// BatchStatus is the progress of one batch.
type BatchStatus struct {
	ID        string       `json:"batch_id"`
	TenderID  string       `json:"tender_id"`
	Status    string       `json:"status"`
	Duplicate bool         `json:"duplicate"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	ResultIDs []string     `json:"result_ids"`
	Errors    []BatchError `json:"errors"`
}

// newValidator returns a validator that also checks consortium members,
// whose model types carry no validate tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(memberLevel, model.ConsortiumMember{})
	v.RegisterStructValidation(requestLevel, evaluation.Request{})
	return v
}

func memberLevel(sl validator.StructLevel) {
	m, ok := sl.Current().Interface().(model.ConsortiumMember)
	if !ok {
		return
	}
	if strings.TrimSpace(m.Company.Name) == "" {
		sl.ReportError(m.Company.Name, "name", "Name", "required", "")
	}
	if m.Role == "" {
		sl.ReportError(m.Role, "role", "Role", "required", "")
	}
	if m.Share < 0 || m.Share > 1 {
		sl.ReportError(m.Share, "share", "Share", "range", "0-1")
	}
}

func requestLevel(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(evaluation.Request)
	if !ok {
		return
	}
	if r.RuleKey.Jurisdiction == "" || r.RuleKey.Tier == "" {
		sl.ReportError(r.RuleKey, "rule_key", "RuleKey", "required", "")
	}
	if r.DutyRatio < 0 || r.DutyRatio > 100 {
		sl.ReportError(r.DutyRatio, "duty_ratio", "DutyRatio", "range", "0-100")
	}
	for i, m := range r.Members {
		if err := sl.Validator().Struct(m); err != nil {
			sl.ReportError(m, "members["+strconv.Itoa(i)+"]", "Members["+strconv.Itoa(i)+"]", "member", "")
		}
	}
}
