package evaluation

import (
	"encoding/json"

	compliance "github.com/okian/consortium/internal/domain/compliance"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
	scoring "github.com/okian/consortium/internal/domain/scoring"
)

// MemberDetail is the per-member section of a result, in input order.
type MemberDetail struct {
	Name                 string                       `json:"name"`
	Role                 model.Role                   `json:"role"`
	Share                float64                      `json:"share"`
	Region               string                       `json:"region"`
	Capacity             float64                      `json:"capacity"`
	BusinessScoreDetails scoring.BusinessScoreDetails `json:"business_score_details"`
	Performance5Y        float64                      `json:"performance_5y"`
	WeightedPerformance  float64                      `json:"weighted_performance"`
}

// RuleSetSummary echoes the policy a result was computed under.
type RuleSetSummary struct {
	Key                   string                    `json:"key"`
	Name                  string                    `json:"name"`
	PerformanceMethod     ruleset.Method            `json:"performance_method"`
	PerformanceParams     ruleset.PerformanceParams `json:"performance_params"`
	PerformanceBaseField  model.PriceField          `json:"performance_base_field"`
	PerformanceMultiplier float64                   `json:"performance_multiplier"`
	ManagementCap         float64                   `json:"management_cap"`
	PerformanceCap        float64                   `json:"performance_cap"`
	TotalCap              float64                   `json:"total_cap"`
}

// Summarize builds the summary of rs.
func Summarize(rs ruleset.RuleSet) RuleSetSummary {
	return RuleSetSummary{
		Key:                   rs.Key.String(),
		Name:                  rs.Name,
		PerformanceMethod:     rs.PerformanceMethod,
		PerformanceParams:     rs.PerformanceParams,
		PerformanceBaseField:  rs.PerformanceBaseField,
		PerformanceMultiplier: rs.PerformanceMultiplier,
		ManagementCap:         rs.ManagementCap,
		PerformanceCap:        rs.PerformanceCap,
		TotalCap:              rs.TotalCap,
	}
}

// ComplianceError records a checker that could not produce a result.
type ComplianceError struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// EvaluationResult is the auditable outcome of one evaluation. It is a value:
// re-evaluate instead of mutating it. When Failed is set only the failure
// fields carry meaning and only they are encoded.
type EvaluationResult struct {
	Failed  bool   `json:"failed"`
	Failure string `json:"failure,omitempty"`

	RuleKey          string             `json:"rule_key"`
	RuleName         string             `json:"rule_name"`
	RuleSet          RuleSetSummary     `json:"ruleset"`
	AnnouncementDate model.Date         `json:"announcement_date"`
	Price            model.PriceContext `json:"price_data"`

	CompanyDetails  []MemberDetail `json:"company_details"`
	ShareSum        float64        `json:"share_sum"`
	ShareSumPercent float64        `json:"share_sum_percent"`

	FinalBusinessScore       float64                   `json:"final_business_score"`
	FinalPerformanceScore    float64                   `json:"final_performance_score"`
	PerformanceRatio         float64                   `json:"performance_ratio"`
	TotalWeightedPerformance float64                   `json:"total_weighted_performance"`
	PerformanceBaseAmount    float64                   `json:"performance_base_amount"`
	PerformanceBaseField     model.PriceField          `json:"performance_base_field"`
	PerformanceTarget        float64                   `json:"performance_target"`
	PerformanceFlags         []scoring.PerformanceFlag `json:"performance_flags"`
	BidScore                 float64                   `json:"bid_score"`
	ExpectedScore            float64                   `json:"expected_score"`

	SipyungCheck      compliance.CapacityResult         `json:"sipyung_check_result"`
	IndividualSipyung []compliance.MemberCapacityResult `json:"individual_sipyung_results"`
	SoloBid           []compliance.SoloBidResult        `json:"solo_bid_results"`
	RegionCheck       compliance.RegionalResult         `json:"region_check_result"`
	Advisories        []Advisory                        `json:"advisories"`
	ComplianceErrors  []ComplianceError                 `json:"compliance_errors"`

	Degradations []scoring.Degradation `json:"degradations"`
}

type failureView struct {
	Failed  bool   `json:"failed"`
	Failure string `json:"failure"`
	RuleKey string `json:"rule_key,omitempty"`
}

// MarshalJSON encodes failed results without score fields.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(failureView{Failed: true, Failure: r.Failure, RuleKey: r.RuleKey})
	}
	type plain EvaluationResult
	return json.Marshal(plain(r))
}

func failed(key string, err error) EvaluationResult {
	return EvaluationResult{Failed: true, Failure: err.Error(), RuleKey: key}
}
