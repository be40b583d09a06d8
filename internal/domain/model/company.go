// Package model contains the input snapshots handed to the scoring engine.
// Values are read-only once built; the engine never mutates them.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Freshness classifies how recently a company field was refreshed at the source.
type Freshness string

// Freshness states resolved by the ingestion layer.
const (
	FreshnessCurrent     Freshness = "current"
	FreshnessOneYearAged Freshness = "one-year-aged"
	FreshnessStale       Freshness = "more-than-one-year-aged"
	FreshnessUnspecified Freshness = "unspecified"
)

// ParseFreshness accepts the canonical tokens and the spreadsheet labels.
// Anything unrecognised is unspecified.
func ParseFreshness(s string) Freshness {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case string(FreshnessCurrent), "최신":
		return FreshnessCurrent
	case string(FreshnessOneYearAged), "1년 경과":
		return FreshnessOneYearAged
	case string(FreshnessStale), "1년 이상 경과":
		return FreshnessStale
	default:
		return FreshnessUnspecified
	}
}

// IsCurrent reports whether the field is up to date.
func (f Freshness) IsCurrent() bool { return f == FreshnessCurrent }

// UnmarshalText lets JSON and YAML inputs carry either token form.
func (f *Freshness) UnmarshalText(b []byte) error {
	*f = ParseFreshness(string(b))
	return nil
}

// Field names a company attribute that carries a freshness tag.
type Field string

// Tagged company fields.
const (
	FieldCapacity      Field = "capacity"
	FieldPerformance3Y Field = "performance_3y"
	FieldPerformance5Y Field = "performance_5y"
	FieldDebtRatio     Field = "debt_ratio"
	FieldCurrentRatio  Field = "current_ratio"
	FieldShare         Field = "share"
)

// FieldStatus holds the per-field freshness of one company.
type FieldStatus map[Field]Freshness

// Of returns the freshness of f, unspecified when absent.
func (s FieldStatus) Of(f Field) Freshness {
	if v, ok := s[f]; ok && v != "" {
		return v
	}
	return FreshnessUnspecified
}

// Company is a registered firm as captured by ingestion.
type Company struct {
	Name          string      `json:"name" yaml:"name"`
	Region        string      `json:"region" yaml:"region"`
	Capacity      float64     `json:"capacity" yaml:"capacity"`             // technical capacity (sipyung)
	Performance3Y float64     `json:"performance_3y" yaml:"performance_3y"` // 3-year performance amount
	Performance5Y float64     `json:"performance_5y" yaml:"performance_5y"` // 5-year performance amount
	DebtRatio     *float64    `json:"debt_ratio,omitempty" yaml:"debt_ratio,omitempty"`
	CurrentRatio  *float64    `json:"current_ratio,omitempty" yaml:"current_ratio,omitempty"`
	CreditRating  string      `json:"credit_rating,omitempty" yaml:"credit_rating,omitempty"`
	Status        FieldStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// Ratio returns a usable ratio value; nil, NaN, Inf and negatives are missing.
func Ratio(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0, false
	}
	return *v, true
}

// Role is a member's position in the consortium: "lead" or "member-N".
type Role string

// RoleLead is the representative company.
const RoleLead Role = "lead"

const memberPrefix = "member-"

// MemberRole builds the role for the n-th non-lead member.
func MemberRole(n int) Role { return Role(memberPrefix + strconv.Itoa(n)) }

// ParseRole accepts "lead", "member-N" and the Korean labels 대표사 / 구성사 N.
func ParseRole(s string) (Role, error) {
	t := strings.TrimSpace(strings.ToLower(s))
	switch {
	case t == string(RoleLead) || t == "대표사":
		return RoleLead, nil
	case strings.HasPrefix(t, memberPrefix):
		return parseMemberIndex(s, strings.TrimPrefix(t, memberPrefix))
	case strings.HasPrefix(t, "구성사"):
		return parseMemberIndex(s, strings.TrimSpace(strings.TrimPrefix(t, "구성사")))
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func parseMemberIndex(raw, digits string) (Role, error) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return MemberRole(n), nil
}

// IsLead reports whether r is the lead role.
func (r Role) IsLead() bool { return r == RoleLead }

// UnmarshalText validates the role while decoding.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ConsortiumMember is a company with its role and equity share in [0,1].
type ConsortiumMember struct {
	Company Company `json:"company" yaml:"company"`
	Role    Role    `json:"role" yaml:"role"`
	Share   float64 `json:"share" yaml:"share"`
}

// PriceField selects which price anchors the performance base amount.
type PriceField string

// Price fields a rule set may anchor on.
const (
	PriceEstimate   PriceField = "estimate_price"
	PriceNoticeBase PriceField = "notice_base_amount"
)

// Valid reports whether f is a known price field.
func (f PriceField) Valid() bool { return f == PriceEstimate || f == PriceNoticeBase }

// PriceContext carries the tender amounts. Rates are percentages.
type PriceContext struct {
	EstimatePrice     float64 `json:"estimate_price" yaml:"estimate_price"`
	NoticeBaseAmount  float64 `json:"notice_base_amount" yaml:"notice_base_amount"`
	ComputedBidAmount float64 `json:"computed_bid_amount" yaml:"computed_bid_amount"`
	BidRate           float64 `json:"bid_rate,omitempty" yaml:"bid_rate,omitempty"`
	AssessmentRate    float64 `json:"assessment_rate,omitempty" yaml:"assessment_rate,omitempty"`
}

// Amount returns the value of the given field.
func (p PriceContext) Amount(f PriceField) float64 {
	switch f {
	case PriceNoticeBase:
		return p.NoticeBaseAmount
	case PriceEstimate:
		return p.EstimatePrice
	default:
		return 0
	}
}

// BidAmount returns the computed bid amount, deriving it from the notice
// base amount and both rates when it was not supplied.
func (p PriceContext) BidAmount() float64 {
	if p.ComputedBidAmount > 0 {
		return p.ComputedBidAmount
	}
	if p.NoticeBaseAmount > 0 && p.BidRate > 0 && p.AssessmentRate > 0 {
		return p.NoticeBaseAmount * (p.BidRate / 100) * (p.AssessmentRate / 100)
	}
	return 0
}
