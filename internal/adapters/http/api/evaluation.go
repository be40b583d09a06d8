package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
)

// EvaluationHandler serves the stateless engine operations.
type EvaluationHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// HandleEvaluate handles POST /evaluate. A failed result is still a
// result: it is written with 422 so clients can show the failure reason.
func (h *EvaluationHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluation.Request
	if err := decode(w, r, h.validate, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), req)
	if errors.Is(err, ErrUnavailable) {
		writeDomainError(w, err)
		return
	}
	if res.Failed {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleShareCheck handles POST /share-check.
func (h *EvaluationHandler) HandleShareCheck(w http.ResponseWriter, r *http.Request) {
	var req shareCheckRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	bid := req.BidAmount
	if bid == 0 {
		bid = req.Price.BidAmount()
	}
	writeJSON(w, http.StatusOK, h.deps.CheckShareLimit(r.Context(), req.Members, bid))
}

// HandleRuleSets handles GET /rulesets.
func (h *EvaluationHandler) HandleRuleSets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.RuleSets(r.Context()))
}
