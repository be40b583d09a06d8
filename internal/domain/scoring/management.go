package scoring

import (
	"time"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
)

// BusinessScoreDetails is the itemised management score of one company.
type BusinessScoreDetails struct {
	DebtScore    float64       `json:"debt_score"`
	CurrentScore float64       `json:"current_score"`
	RatioScore   float64       `json:"ratio_score"`
	CreditScore  float64       `json:"credit_score"`
	CreditGrade  string        `json:"credit_grade,omitempty"`
	CreditValid  CreditState   `json:"credit_valid"`
	Basis        Basis         `json:"basis"`
	Total        float64       `json:"total"`
	Degraded     bool          `json:"degraded"`
	Degradations []Degradation `json:"degradations,omitempty"`
}

// Management scores companies under one rule set.
type Management struct {
	rules ruleset.RuleSet
}

// NewManagement returns a calculator bound to rs.
func NewManagement(rs ruleset.RuleSet) *Management {
	return &Management{rules: rs}
}

// Score computes the management score of c as of the announcement date.
//
// The ratio path sums the debt and current ratio scores up to the management
// cap. The credit path is taken only when the rating is valid, the ratio path
// falls short of the cap, and the credit score is higher or the ratio inputs
// are degraded.
func (m *Management) Score(c model.Company, announced time.Time) BusinessScoreDetails {
	var d BusinessScoreDetails
	limit := m.rules.ManagementCap

	if v, ok := model.Ratio(c.DebtRatio); ok {
		d.DebtScore = m.rules.DebtTable.Lookup(v)
	}
	if v, ok := model.Ratio(c.CurrentRatio); ok {
		d.CurrentScore = m.rules.CurrentTable.Lookup(v)
	}
	d.Degradations = append(d.Degradations, ratioDegradation(c, model.FieldDebtRatio, c.DebtRatio)...)
	d.Degradations = append(d.Degradations, ratioDegradation(c, model.FieldCurrentRatio, c.CurrentRatio)...)
	d.Degraded = len(d.Degradations) > 0
	d.RatioScore = clampCap(d.DebtScore+d.CurrentScore, limit)

	credit := ParseCreditRating(c.CreditRating, announced, m.rules.CreditTable)
	d.CreditValid = credit.State
	d.CreditGrade = credit.Grade
	if credit.State == CreditValid {
		score, _ := m.rules.CreditTable.Lookup(credit.Grade)
		d.CreditScore = clampCap(score, limit)
	}

	d.Basis = BasisRatio
	d.Total = d.RatioScore
	if credit.State == CreditValid && d.RatioScore < limit && (d.CreditScore > d.RatioScore || d.Degraded) {
		d.Basis = BasisCreditRating
		d.Total = d.CreditScore
	}
	return d
}

func ratioDegradation(c model.Company, f model.Field, v *float64) []Degradation {
	fresh := c.Status.Of(f)
	if _, ok := model.Ratio(v); !ok {
		return []Degradation{{Company: c.Name, Field: f, Freshness: fresh, Reason: ReasonMissing}}
	}
	if !fresh.IsCurrent() {
		return []Degradation{{Company: c.Name, Field: f, Freshness: fresh, Reason: ReasonStale}}
	}
	return nil
}
