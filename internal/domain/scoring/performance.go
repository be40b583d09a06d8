package scoring

import (
	"math"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
)

// PerformanceFlag annotates a performance outcome.
type PerformanceFlag string

// Performance flags.
const (
	FlagBaseAmountMissing PerformanceFlag = "base-amount-missing"
	FlagStalePerformance  PerformanceFlag = "stale-performance"
	FlagCapped            PerformanceFlag = "capped"
	FlagOverflow          PerformanceFlag = "overflow"
)

// PerformanceOutcome is the pooled performance score of a consortium.
type PerformanceOutcome struct {
	TotalWeighted float64           `json:"total_weighted_performance"`
	BaseAmount    float64           `json:"base_amount"`
	BaseField     model.PriceField  `json:"base_field"`
	Target        float64           `json:"target"`
	Method        ruleset.Method    `json:"method"`
	Ratio         float64           `json:"ratio"`
	Score         float64           `json:"score"`
	Flags         []PerformanceFlag `json:"flags,omitempty"`
}

// HasFlag reports whether f was raised.
func (o PerformanceOutcome) HasFlag(f PerformanceFlag) bool {
	for _, x := range o.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// Performance pools share-weighted five-year performance and converts it to
// points under rs. A missing base amount yields a zero ratio and score.
// Sums beyond float64 range are pinned to math.MaxFloat64 and flagged.
func Performance(members []model.ConsortiumMember, price model.PriceContext, rs ruleset.RuleSet) (out PerformanceOutcome) {
	out = PerformanceOutcome{
		BaseField: rs.PerformanceBaseField,
		Method:    rs.PerformanceMethod,
	}

	overflow := false
	pin := func(v float64) float64 {
		if math.IsInf(v, 0) {
			overflow = true
			return math.Copysign(math.MaxFloat64, v)
		}
		return v
	}
	defer func() {
		if overflow {
			out.Flags = append(out.Flags, FlagOverflow)
		}
	}()

	stale := false
	for _, m := range members {
		out.TotalWeighted += finite(m.Company.Performance5Y) * finite(m.Share)
		if !m.Company.Status.Of(model.FieldPerformance5Y).IsCurrent() {
			stale = true
		}
	}
	if stale {
		out.Flags = append(out.Flags, FlagStalePerformance)
	}
	out.TotalWeighted = pin(out.TotalWeighted)

	base := finite(price.Amount(rs.PerformanceBaseField))
	if base <= 0 {
		out.Flags = append(out.Flags, FlagBaseAmountMissing)
		return out
	}
	out.BaseAmount = base
	out.Target = pin(base * rs.PerformanceMultiplier)
	out.Ratio = pin(out.TotalWeighted / base * 100)

	switch rs.PerformanceMethod {
	case ruleset.MethodDirectFormula:
		p := rs.PerformanceParams
		limit := math.Min(p.MaxScore, rs.PerformanceCap)
		raw := out.TotalWeighted / (base * p.BaseMultiplier) * p.MaxScore
		out.Score = clampCap(raw, limit)
		if raw > limit {
			out.Flags = append(out.Flags, FlagCapped)
		}
	default:
		out.Score = rs.PerformanceScore(out.Ratio)
		top := rs.PerformanceTable.Top()
		if out.Ratio >= top || (rs.FullScoreRatio > 0 && out.Ratio >= rs.FullScoreRatio) {
			out.Flags = append(out.Flags, FlagCapped)
		}
	}
	return out
}

// finite maps NaN, infinities and negatives to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
