// Package repository holds saved evaluation results and ranks the candidates
// of each tender by expected score.
package repository

import (
	"context"
	"time"

	evaluation "github.com/okian/consortium/internal/domain/evaluation"
)

// Record is one saved evaluation. ID is assigned on save when empty.
type Record struct {
	ID          string                      `json:"id"`
	TenderID    string                      `json:"tender_id"`
	Candidate   string                      `json:"candidate"`
	Fingerprint string                      `json:"fingerprint,omitempty"`
	SavedAt     time.Time                   `json:"saved_at"`
	Result      evaluation.EvaluationResult `json:"result"`
}

// Entry is a ranking row of one tender.
type Entry struct {
	Rank          int      `json:"rank"`
	ID            string   `json:"id"`
	Candidate     string   `json:"candidate"`
	ExpectedScore float64  `json:"expected_score"`
	Failures      []string `json:"failures"`
}

// Store provides read/write access to saved results.
type Store interface {
	// Save stores rec, replacing a record with the same ID, and returns its ID.
	// Failed results and records without a tender are rejected.
	Save(ctx context.Context, rec Record) (string, error)

	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Ranking returns up to n entries of tenderID ordered by expected score
	// desc, then id asc. Equal scores share a rank.
	Ranking(ctx context.Context, tenderID string, n int) ([]Entry, error)

	// Rank returns the ranking entry of one saved record.
	Rank(ctx context.Context, id string) (Entry, error)

	// Count returns the number of saved records.
	Count(ctx context.Context) int
}
