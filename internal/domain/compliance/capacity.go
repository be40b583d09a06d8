package compliance

import (
	"fmt"
	"strings"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/shopspring/decimal"
)

// CapacityMethod selects how member capacities combine against the limit.
type CapacityMethod string

// Capacity methods.
const (
	CapacityRatio CapacityMethod = "ratio" // 비율제: capacity weighted by share
	CapacitySum   CapacityMethod = "sum"   // 합산제: raw sum of capacities
)

// ParseCapacityMethod accepts the canonical token or the Korean label.
func ParseCapacityMethod(s string) (CapacityMethod, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case string(CapacityRatio), "비율제":
		return CapacityRatio, nil
	case string(CapacitySum), "합산제":
		return CapacitySum, nil
	}
	return "", fmt.Errorf("unknown capacity method %q", s)
}

// UnmarshalText validates the method while decoding.
func (m *CapacityMethod) UnmarshalText(b []byte) error {
	v, err := ParseCapacityMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// CapacityConfig describes the tender's capacity (sipyung) limit.
type CapacityConfig struct {
	Limited     bool           `json:"limited" yaml:"limited"`
	LimitAmount float64        `json:"limit_amount" yaml:"limit_amount"`
	Method      CapacityMethod `json:"method" yaml:"method"`
}

// CapacityResult is the consortium-wide capacity check.
type CapacityResult struct {
	Limited     bool           `json:"limited"`
	Method      CapacityMethod `json:"method,omitempty"`
	LimitAmount float64        `json:"limit_amount"`
	RatioTotal  float64        `json:"ratio_total"`
	SumTotal    float64        `json:"sum_total"`
	Total       float64        `json:"total"`
	Passed      bool           `json:"passed"`
	Message     string         `json:"message"`
}

// MemberCapacityResult is one member's share of the capacity limit.
type MemberCapacityResult struct {
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
	Capacity float64    `json:"capacity"`
	Required float64    `json:"required"`
	Passed   bool       `json:"passed"`
	Message  string     `json:"message"`
}

func capacityTotals(members []model.ConsortiumMember) (ratio, sum decimal.Decimal) {
	ratio, sum = decimal.Zero, decimal.Zero
	for _, m := range members {
		c := dec(m.Company.Capacity)
		ratio = ratio.Add(c.Mul(dec(m.Share)))
		sum = sum.Add(c)
	}
	return ratio, sum
}

// CapacityLimit compares the combined capacity against the limit. Both
// totals are always reported; Total is the one the method selects.
func CapacityLimit(members []model.ConsortiumMember, cfg CapacityConfig) CapacityResult {
	ratio, sum := capacityTotals(members)
	res := CapacityResult{
		Limited:     cfg.Limited,
		Method:      cfg.Method,
		LimitAmount: cfg.LimitAmount,
		RatioTotal:  f64(ratio.Round(2)),
		SumTotal:    f64(sum.Round(2)),
	}

	if !cfg.Limited {
		res.Passed = true
		res.Message = "no capacity limit"
		return res
	}

	var total decimal.Decimal
	switch cfg.Method {
	case CapacityRatio:
		total = ratio
	case CapacitySum:
		total = sum
	default:
		res.Message = fmt.Sprintf("unknown capacity method %q", cfg.Method)
		return res
	}
	res.Total = f64(total.Round(2))

	limit := dec(cfg.LimitAmount)
	if total.GreaterThanOrEqual(limit) {
		res.Passed = true
		res.Message = fmt.Sprintf("%s total %s meets limit %s", cfg.Method, total.StringFixed(0), limit.StringFixed(0))
	} else {
		res.Message = fmt.Sprintf("%s total %s is below limit %s (short by %s)",
			cfg.Method, total.StringFixed(0), limit.StringFixed(0), limit.Sub(total).StringFixed(0))
	}
	return res
}

// IndividualCapacity checks each member's capacity against its share of the
// limit. It only applies to a limited tender under the ratio method.
func IndividualCapacity(members []model.ConsortiumMember, cfg CapacityConfig) []MemberCapacityResult {
	out := []MemberCapacityResult{}
	if !cfg.Limited || cfg.Method != CapacityRatio {
		return out
	}
	limit := dec(cfg.LimitAmount)
	for _, m := range members {
		capacity := dec(m.Company.Capacity)
		required := limit.Mul(dec(m.Share))
		r := MemberCapacityResult{
			Name:     m.Company.Name,
			Role:     m.Role,
			Capacity: f64(capacity),
			Required: f64(required.Round(4)),
			Passed:   capacity.GreaterThanOrEqual(required),
		}
		if r.Passed {
			r.Message = fmt.Sprintf("capacity %s covers required %s", capacity.StringFixed(2), required.StringFixed(2))
		} else {
			r.Message = fmt.Sprintf("capacity %s is below required %s", capacity.StringFixed(2), required.StringFixed(2))
		}
		out = append(out, r)
	}
	return out
}
