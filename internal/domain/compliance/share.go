package compliance

import (
	"fmt"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ShareCheckResult compares a member's assigned share with the largest share
// its own capacity supports at the given bid amount. Percentages have two
// decimal places; Difference is max minus input.
type ShareCheckResult struct {
	Name              string     `json:"name"`
	Role              model.Role `json:"role"`
	Capacity          float64    `json:"capacity"`
	InputSharePercent float64    `json:"input_share"`
	MaxSharePercent   float64    `json:"max_share"`
	Difference        float64    `json:"difference"`
	IsProblem         bool       `json:"is_problem"`
	Message           string     `json:"message"`
}

// ShareLimit runs the maximum permissible share pre-check. A non-positive bid
// amount cannot bound any share, so nothing is flagged.
func ShareLimit(members []model.ConsortiumMember, bidAmount float64) []ShareCheckResult {
	out := make([]ShareCheckResult, 0, len(members))
	bid := dec(bidAmount)
	for _, m := range members {
		capacity := dec(m.Company.Capacity)
		input := percent(dec(m.Share))
		r := ShareCheckResult{
			Name:              m.Company.Name,
			Role:              m.Role,
			Capacity:          f64(capacity),
			InputSharePercent: f64(input),
		}
		if !bid.IsPositive() {
			r.Message = "bid amount is not set; share limit not checked"
			out = append(out, r)
			continue
		}

		maxShare := decimal.Min(capacity.Div(bid), decimal.NewFromInt(1))
		if maxShare.IsNegative() {
			maxShare = decimal.Zero
		}
		maxPct := percent(maxShare)
		diff := maxPct.Sub(input)
		r.MaxSharePercent = f64(maxPct)
		r.Difference = f64(diff)
		r.IsProblem = input.GreaterThan(maxPct)
		if r.IsProblem {
			r.Message = fmt.Sprintf("share %s%% exceeds maximum %s%% by %s%%", input.StringFixed(2), maxPct.StringFixed(2), diff.Neg().StringFixed(2))
		} else {
			r.Message = fmt.Sprintf("share %s%% is within maximum %s%%", input.StringFixed(2), maxPct.StringFixed(2))
		}
		out = append(out, r)
	}
	return out
}
