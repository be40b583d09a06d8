// Package scoring computes the management and performance sub-scores of a
// consortium. Every function is pure: it reads its arguments and the rule set
// and returns a value, never an error.
package scoring

import (
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
)

// Basis records which path produced a management score.
type Basis string

// Management score bases.
const (
	BasisRatio        Basis = "ratio"
	BasisCreditRating Basis = "credit-rating"
)

// Reasons attached to a Degradation.
const (
	ReasonMissing    = "missing"
	ReasonStale      = "stale"
	ReasonOutOfRange = "out-of-range"
)

// Degradation flags an input that was stale, missing or out of range. The score is still
// computed with best-effort defaults.
type Degradation struct {
	Company   string          `json:"company"`
	Field     model.Field     `json:"field"`
	Freshness model.Freshness `json:"freshness"`
	Reason    string          `json:"reason"`
}

func clampCap(v, limit float64) float64 { return ruleset.Clamp(v, 0, limit) }
