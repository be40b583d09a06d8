package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// BatchesHandler accepts bulk recalculations and reports their progress.
type BatchesHandler struct {
	deps     Dependencies
	validate *validator.Validate
	maxSize  int
}

// HandleSubmit handles POST /batches. Resubmitting an idempotency key
// returns the original batch with duplicate set.
func (h *BatchesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub BatchSubmission
	if err := decode(w, r, h.validate, &sub); err != nil {
		writeDomainError(w, err)
		return
	}
	if len(sub.Candidates) > h.maxSize {
		writeDomainError(w, fmt.Errorf("%w: %d candidates, max %d", ErrTooLarge, len(sub.Candidates), h.maxSize))
		return
	}
	status, err := h.deps.SubmitBatch(r.Context(), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	code := http.StatusAccepted
	if status.Duplicate {
		code = http.StatusOK
	}
	writeJSON(w, code, status)
}

// HandleGet handles GET /batches/{id}.
func (h *BatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Batch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
