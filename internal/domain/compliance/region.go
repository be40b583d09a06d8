package compliance

import (
	"fmt"
	"strings"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/shopspring/decimal"
)

// RegionalResult is the outcome of the regional set-aside check.
type RegionalResult struct {
	Region         string   `json:"region"`
	Restricted     bool     `json:"restricted"`
	DutyRatio      float64  `json:"duty_ratio"`
	Sum            float64  `json:"sum"`
	SumPercent     float64  `json:"sum_percent"`
	SumPercentText string   `json:"sum_percent_text"`
	MatchedMembers []string `json:"matched_members"`
	Passed         bool     `json:"passed"`
	Message        string   `json:"message"`
}

// Unrestricted reports whether region imposes no set-aside.
func Unrestricted(region string) bool {
	r := strings.TrimSpace(region)
	return r == "" || r == "전체" || strings.EqualFold(r, "all")
}

// RegionalSetAside sums the shares of members whose region contains the
// mandated region and compares the sum against dutyRatio percent.
func RegionalSetAside(members []model.ConsortiumMember, region string, dutyRatio float64) RegionalResult {
	res := RegionalResult{
		Region:         strings.TrimSpace(region),
		DutyRatio:      dutyRatio,
		MatchedMembers: []string{},
	}

	sum := decimal.Zero
	if !Unrestricted(region) {
		res.Restricted = true
		for _, m := range members {
			if strings.Contains(m.Company.Region, res.Region) {
				sum = sum.Add(dec(m.Share))
				res.MatchedMembers = append(res.MatchedMembers, m.Company.Name)
			}
		}
	}

	pct := percent(sum)
	res.Sum = f64(sum)
	res.SumPercent = f64(pct)
	res.SumPercentText = pct.StringFixed(2)

	switch {
	case !res.Restricted:
		res.Passed = true
		res.Message = "no regional restriction"
	case pct.GreaterThanOrEqual(dec(dutyRatio)):
		res.Passed = true
		res.Message = fmt.Sprintf("regional share %s%% meets duty ratio %s%%", res.SumPercentText, dec(dutyRatio).StringFixed(2))
	default:
		res.Message = fmt.Sprintf("regional share %s%% is below duty ratio %s%%", res.SumPercentText, dec(dutyRatio).StringFixed(2))
	}
	return res
}
