package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/okian/consortium/internal/adapters/repository"
)

// ResultsHandler saves evaluations and ranks the candidates of a tender.
type ResultsHandler struct {
	deps     Dependencies
	validate *validator.Validate
	maxLimit int
}

// HandleSave handles POST /results.
func (h *ResultsHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveResultRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), req.Request)
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
	id, err := h.deps.SaveResult(r.Context(), repository.Record{
		TenderID:    req.TenderID,
		Candidate:   req.Candidate,
		Fingerprint: req.Request.Fingerprint(),
		Result:      res,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResultResponse{ID: id, Result: res})
}

// HandleGet handles GET /results/{id}.
func (h *ResultsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleRanking handles GET /tenders/{id}/ranking?limit=N.
func (h *ResultsHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	n := defaultRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit))
		return
	}
	entries, err := h.deps.Ranking(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
