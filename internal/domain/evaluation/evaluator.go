// Package evaluation assembles the full auditable result for one consortium
// candidate. An Evaluator holds no mutable state and may be shared freely.
package evaluation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	compliance "github.com/okian/consortium/internal/domain/compliance"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
	scoring "github.com/okian/consortium/internal/domain/scoring"
	"github.com/shopspring/decimal"
)

// defaultShareTolerance bounds |sum - 1| when strict shares are requested.
const defaultShareTolerance = 1e-4

// fingerprintSpace namespaces request fingerprints.
var fingerprintSpace = uuid.MustParse("6f1c2a4e-93b5-4d0e-8a57-2c9e1d7b3f60")

// RuleSource resolves rule sets. *ruleset.Registry satisfies it.
type RuleSource interface {
	Resolve(ruleset.Key) (ruleset.RuleSet, error)
}

// Request is everything one evaluation reads.
type Request struct {
	Members          []model.ConsortiumMember  `json:"members" yaml:"members"`
	Price            model.PriceContext        `json:"price" yaml:"price"`
	AnnouncementDate model.Date                `json:"announcement_date" yaml:"announcement_date"`
	RuleKey          ruleset.Key               `json:"rule_key" yaml:"rule_key"`
	Capacity         compliance.CapacityConfig `json:"capacity" yaml:"capacity"`
	Region           string                    `json:"region" yaml:"region"`
	DutyRatio        float64                   `json:"duty_ratio" yaml:"duty_ratio"`
	SoloBid          compliance.SoloBidConfig  `json:"solo_bid" yaml:"solo_bid"`
	BidScore         *float64                  `json:"bid_score,omitempty" yaml:"bid_score,omitempty"`
	StrictShares     bool                      `json:"strict_shares" yaml:"strict_shares"`
}

// Fingerprint derives a stable id from the request contents.
func (r Request) Fingerprint() string {
	b, err := json.Marshal(r)
	if err != nil {
		return uuid.Nil.String()
	}
	return uuid.NewSHA1(fingerprintSpace, b).String()
}

// Advisory is the outcome of an extra check registered with WithCheck.
type Advisory struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Check is an extra advisory check run after the built-in ones.
type Check func(Request) Advisory

type namedCheck struct {
	name string
	run  Check
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithShareTolerance sets the allowed deviation of the share sum from 1
// under strict shares.
func WithShareTolerance(tol float64) Option {
	return func(e *Evaluator) {
		if tol > 0 {
			e.shareTolerance = tol
		}
	}
}

// WithCheck registers an extra advisory check. Its outcome is reported in
// Advisories; a panic becomes a ComplianceError like the built-in checks.
func WithCheck(name string, c Check) Option {
	return func(e *Evaluator) {
		if name != "" && c != nil {
			e.extra = append(e.extra, namedCheck{name: name, run: c})
		}
	}
}

// Evaluator runs the scoring pipeline.
type Evaluator struct {
	rules          RuleSource
	shareTolerance float64
	extra          []namedCheck
}

// New returns an evaluator reading rule sets from rules.
func New(rules RuleSource, opts ...Option) *Evaluator {
	e := &Evaluator{
		rules:          rules,
		shareTolerance: defaultShareTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores one consortium. A failed result is returned together with
// an error when there are no members, the rule set cannot be resolved, or
// strict shares do not sum to 1. Compliance problems never fail a result.
func (e *Evaluator) Evaluate(req Request) (EvaluationResult, error) {
	key := req.RuleKey.String()
	if len(req.Members) == 0 {
		return failed(key, ErrNoMembers), fmt.Errorf("evaluate %s: %w", key, ErrNoMembers)
	}

	rs, err := e.rules.Resolve(req.RuleKey)
	if err != nil {
		return failed(key, err), fmt.Errorf("evaluate: %w", err)
	}

	shareSum := decimal.Zero
	for _, m := range req.Members {
		shareSum = shareSum.Add(decimalOf(m.Share))
	}
	if req.StrictShares && shareSum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(e.shareTolerance)) {
		err := fmt.Errorf("%w: got %s", ErrShareSumMismatch, shareSum.String())
		return failed(key, err), fmt.Errorf("evaluate %s: %w", key, err)
	}

	res := EvaluationResult{
		RuleKey:          key,
		RuleName:         rs.Name,
		RuleSet:          Summarize(rs),
		AnnouncementDate: req.AnnouncementDate,
		Price:            req.Price,
		ShareSum:         round(shareSum.InexactFloat64(), 6),
		ShareSumPercent:  shareSum.Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64(),
		CompanyDetails:   make([]MemberDetail, 0, len(req.Members)),
		Degradations:     []scoring.Degradation{},
		ComplianceErrors: []ComplianceError{},
	}
	res.Price.ComputedBidAmount = pin(req.Price.BidAmount())

	var adjusted []scoring.Degradation
	req.Members, adjusted = normalizeShares(req.Members)
	res.Degradations = append(res.Degradations, adjusted...)

	mgmt := scoring.NewManagement(rs)
	business := 0.0
	for _, m := range req.Members {
		share := m.Share
		d := mgmt.Score(m.Company, req.AnnouncementDate.Time())
		business += d.Total * share
		res.Degradations = append(res.Degradations, d.Degradations...)
		if f := m.Company.Status.Of(model.FieldPerformance5Y); !f.IsCurrent() {
			res.Degradations = append(res.Degradations, scoring.Degradation{
				Company: m.Company.Name, Field: model.FieldPerformance5Y, Freshness: f, Reason: scoring.ReasonStale,
			})
		}
		res.CompanyDetails = append(res.CompanyDetails, MemberDetail{
			Name:                 m.Company.Name,
			Role:                 m.Role,
			Share:                share,
			Region:               m.Company.Region,
			Capacity:             m.Company.Capacity,
			BusinessScoreDetails: d,
			Performance5Y:        m.Company.Performance5Y,
			WeightedPerformance:  finite(m.Company.Performance5Y) * share,
		})
	}
	res.FinalBusinessScore = round(ruleset.Clamp(business, 0, rs.ManagementCap), 4)

	perf := scoring.Performance(req.Members, req.Price, rs)
	res.FinalPerformanceScore = round(ruleset.Clamp(perf.Score, 0, rs.PerformanceCap), 4)
	res.PerformanceRatio = round(perf.Ratio, 4)
	res.TotalWeightedPerformance = perf.TotalWeighted
	res.PerformanceBaseAmount = perf.BaseAmount
	res.PerformanceBaseField = perf.BaseField
	res.PerformanceTarget = perf.Target
	res.PerformanceFlags = append([]scoring.PerformanceFlag{}, perf.Flags...)

	res.BidScore = rs.DefaultBidScore
	if req.BidScore != nil {
		res.BidScore = ruleset.Clamp(*req.BidScore, 0, rs.TotalCap)
	}
	total := res.FinalBusinessScore + res.FinalPerformanceScore + res.BidScore
	res.ExpectedScore = round(math.Min(total, rs.TotalCap), 4)

	e.runChecks(&res, req)
	return res, nil
}

// runChecks runs every compliance checker in isolation so one failing
// checker cannot hide the others.
func (e *Evaluator) runChecks(res *EvaluationResult, req Request) {
	guard := func(name string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				res.ComplianceErrors = append(res.ComplianceErrors, ComplianceError{Check: name, Message: fmt.Sprint(r)})
			}
		}()
		fn()
	}

	res.IndividualSipyung = []compliance.MemberCapacityResult{}
	res.SoloBid = []compliance.SoloBidResult{}

	guard(CheckCapacity, func() { res.SipyungCheck = compliance.CapacityLimit(req.Members, req.Capacity) })
	guard(CheckIndividualCapacity, func() { res.IndividualSipyung = compliance.IndividualCapacity(req.Members, req.Capacity) })
	guard(CheckSoloBid, func() { res.SoloBid = compliance.SoloBid(req.Members, req.SoloBid) })
	guard(CheckRegion, func() { res.RegionCheck = compliance.RegionalSetAside(req.Members, req.Region, req.DutyRatio) })

	res.Advisories = []Advisory{}
	for _, c := range e.extra {
		guard(c.name, func() {
			a := c.run(req)
			a.Check = c.name
			res.Advisories = append(res.Advisories, a)
		})
	}
}

// Checker names used in ComplianceError and metrics.
const (
	CheckCapacity           = "capacity"
	CheckIndividualCapacity = "individual_capacity"
	CheckSoloBid            = "solo_bid"
	CheckRegion             = "region"
)

// CheckShareLimit runs the maximum permissible share pre-check.
func (e *Evaluator) CheckShareLimit(members []model.ConsortiumMember, bidAmount float64) []compliance.ShareCheckResult {
	return compliance.ShareLimit(members, bidAmount)
}

// Failures lists the names of compliance checks that did not pass.
func (r EvaluationResult) Failures() []string {
	var out []string
	if r.Failed {
		return out
	}
	if !r.SipyungCheck.Passed {
		out = append(out, CheckCapacity)
	}
	for _, m := range r.IndividualSipyung {
		if !m.Passed {
			out = append(out, CheckIndividualCapacity)
			break
		}
	}
	if !r.RegionCheck.Passed {
		out = append(out, CheckRegion)
	}
	for _, a := range r.Advisories {
		if !a.Passed {
			out = append(out, a.Check)
		}
	}
	return out
}

// normalizeShares returns a copy of members with every share clamped to
// [0,1] and a degradation for each share that had to be moved.
func normalizeShares(members []model.ConsortiumMember) ([]model.ConsortiumMember, []scoring.Degradation) {
	out := make([]model.ConsortiumMember, len(members))
	var adjusted []scoring.Degradation
	for i, m := range members {
		share := ruleset.Clamp(m.Share, 0, 1)
		if share != m.Share {
			adjusted = append(adjusted, scoring.Degradation{
				Company:   m.Company.Name,
				Field:     model.FieldShare,
				Freshness: m.Company.Status.Of(model.FieldShare),
				Reason:    scoring.ReasonOutOfRange,
			})
			m.Share = share
		}
		out[i] = m
	}
	return out, adjusted
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// pin maps infinities to the largest finite float64 of the same sign.
func pin(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.Copysign(math.MaxFloat64, v)
	}
	return v
}

func decimalOf(v float64) decimal.Decimal { return decimal.NewFromFloat(finite(v)) }

// round rounds to places decimals. Magnitudes past float64's integer
// precision carry no fraction and are returned as is.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v = pin(v); math.Abs(v) >= 1<<53 {
		return v
	}
	return decimalOf(v).Round(places).InexactFloat64()
}
