// Package ruleset holds the jurisdiction and tier specific policy tables that
// govern scoring. A Registry is immutable once built and safe for concurrent use.
package ruleset

import (
	"math"
	"strings"

	model "github.com/okian/consortium/internal/domain/model"
)

// Method selects how pooled performance becomes points.
type Method string

// Performance methods.
const (
	MethodRatioTable    Method = "ratio_table"
	MethodDirectFormula Method = "direct_formula"
)

// Step is one bracket of a threshold table.
type Step struct {
	Bound float64 `json:"bound" yaml:"bound"`
	Score float64 `json:"score" yaml:"score"`
}

// CeilingTable scores "lower is better" values. Steps are ordered by
// increasing bound; the first step whose bound is at least the value wins.
type CeilingTable []Step

// Lookup returns the score for v, clamping past the last bracket.
func (t CeilingTable) Lookup(v float64) float64 {
	if len(t) == 0 {
		return 0
	}
	for _, s := range t {
		if v <= s.Bound {
			return s.Score
		}
	}
	return t[len(t)-1].Score
}

// Max returns the best score in the table.
func (t CeilingTable) Max() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[0].Score
}

// FloorTable scores "higher is better" values. Steps are ordered by
// decreasing bound; the first step whose bound is at most the value wins.
type FloorTable []Step

// Lookup returns the score for v, clamping past either end.
func (t FloorTable) Lookup(v float64) float64 {
	if len(t) == 0 {
		return 0
	}
	for _, s := range t {
		if v >= s.Bound {
			return s.Score
		}
	}
	return t[len(t)-1].Score
}

// Max returns the best score in the table.
func (t FloorTable) Max() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[0].Score
}

// Top returns the bound of the best bracket.
func (t FloorTable) Top() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[0].Bound
}

// Grade maps a credit rating grade to a management score.
type Grade struct {
	Grade string  `json:"grade" yaml:"grade"`
	Score float64 `json:"score" yaml:"score"`
}

// CreditTable is an ordered list of grades, best first.
type CreditTable []Grade

// Lookup returns the score for grade and whether the grade is known.
func (t CreditTable) Lookup(grade string) (float64, bool) {
	g := NormalizeGrade(grade)
	for _, e := range t {
		if NormalizeGrade(e.Grade) == g {
			return e.Score, true
		}
	}
	return 0, false
}

// NormalizeGrade upper-cases a grade and drops inner whitespace.
func NormalizeGrade(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// PerformanceParams are the direct formula parameters.
type PerformanceParams struct {
	BaseMultiplier float64 `json:"base_multiplier" yaml:"base_multiplier"`
	MaxScore       float64 `json:"max_score" yaml:"max_score"`
}

// RuleSet is the policy bundle for one jurisdiction and tier.
type RuleSet struct {
	Key                   Key               `json:"key"`
	Name                  string            `json:"name"`
	PerformanceMultiplier float64           `json:"performance_multiplier"`
	PerformanceMethod     Method            `json:"performance_method"`
	PerformanceParams     PerformanceParams `json:"performance_params"`
	PerformanceBaseField  model.PriceField  `json:"performance_base_field"`
	PerformanceTable      FloorTable        `json:"performance_table,omitempty"`
	FullScoreRatio        float64           `json:"full_score_ratio,omitempty"`
	DebtTable             CeilingTable      `json:"debt_table"`
	CurrentTable          FloorTable        `json:"current_table"`
	CreditTable           CreditTable       `json:"credit_table"`
	ManagementCap         float64           `json:"management_cap"`
	PerformanceCap        float64           `json:"performance_cap"`
	TotalCap              float64           `json:"total_cap"`
	DefaultBidScore       float64           `json:"default_bid_score"`
}

// PerformanceScore maps a performance ratio in percent through the ratio table.
// Ratios at or above the top bracket, or at or above FullScoreRatio when set,
// earn the table maximum. The result is clamped to [0, PerformanceCap].
func (r RuleSet) PerformanceScore(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio <= 0 {
		return 0
	}
	score := r.PerformanceTable.Lookup(ratio)
	if ratio >= r.PerformanceTable.Top() || (r.FullScoreRatio > 0 && ratio >= r.FullScoreRatio) {
		score = r.PerformanceTable.Max()
	}
	return Clamp(score, 0, r.PerformanceCap)
}

// Clamp bounds v to [lo, hi]; NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
