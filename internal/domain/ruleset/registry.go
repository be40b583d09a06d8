package ruleset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	model "github.com/okian/consortium/internal/domain/model"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

var errEmptyTable = errors.New("empty")

// Registry resolves rule sets by key.
type Registry struct {
	sets map[Key]RuleSet
	keys []Key
}

// NewRegistry validates sets and builds a registry from them.
func NewRegistry(sets ...RuleSet) (*Registry, error) {
	r := &Registry{sets: make(map[Key]RuleSet, len(sets))}
	for _, rs := range sets {
		if err := Validate(rs); err != nil {
			return nil, err
		}
		if _, dup := r.sets[rs.Key]; dup {
			return nil, &ConfigurationError{Key: rs.Key.String(), Err: ErrDuplicateRuleSet}
		}
		r.sets[rs.Key] = rs
		r.keys = append(r.keys, rs.Key)
	}
	return r, nil
}

// Default returns the registry built from the embedded rule tables.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultRules))
}

// LoadFile reads a rule table file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML rule table document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: decode: %w", ErrInvalidTable, err)}
	}
	if len(doc.RuleSets) == 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: no rule sets defined", ErrInvalidTable)}
	}
	sets := make([]RuleSet, 0, len(doc.RuleSets))
	for _, d := range doc.RuleSets {
		rs, err := d.ruleSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return NewRegistry(sets...)
}

// Resolve returns the rule set for k. An unknown key is a ConfigurationError.
func (r *Registry) Resolve(k Key) (RuleSet, error) {
	rs, ok := r.sets[k]
	if !ok {
		return RuleSet{}, &ConfigurationError{Key: k.String(), Err: ErrUnknownRuleSet}
	}
	return rs, nil
}

// List returns every rule set in definition order.
func (r *Registry) List() []RuleSet {
	out := make([]RuleSet, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.sets[k])
	}
	return out
}

// Len returns the number of rule sets.
func (r *Registry) Len() int { return len(r.keys) }

type document struct {
	RuleSets []ruleSetDoc `yaml:"rulesets"`
}

type ruleSetDoc struct {
	Jurisdiction          string            `yaml:"jurisdiction"`
	Tier                  string            `yaml:"tier"`
	Name                  string            `yaml:"name"`
	PerformanceMultiplier float64           `yaml:"performance_multiplier"`
	PerformanceMethod     string            `yaml:"performance_method"`
	PerformanceParams     PerformanceParams `yaml:"performance_params"`
	PerformanceBaseField  string            `yaml:"performance_base_field"`
	PerformanceTable      []Step            `yaml:"performance_table"`
	FullScoreRatio        float64           `yaml:"full_score_ratio"`
	Management            managementDoc     `yaml:"management"`
	PerformanceCap        float64           `yaml:"performance_cap"`
	TotalCap              float64           `yaml:"total_cap"`
	DefaultBidScore       float64           `yaml:"default_bid_score"`
}

type managementDoc struct {
	Cap          float64 `yaml:"cap"`
	DebtTable    []Step  `yaml:"debt_table"`
	CurrentTable []Step  `yaml:"current_table"`
	CreditTable  []Grade `yaml:"credit_table"`
}

func (d ruleSetDoc) ruleSet() (RuleSet, error) {
	key, err := NewKey(d.Jurisdiction, d.Tier)
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{
		Key:                   key,
		Name:                  d.Name,
		PerformanceMultiplier: d.PerformanceMultiplier,
		PerformanceMethod:     Method(d.PerformanceMethod),
		PerformanceParams:     d.PerformanceParams,
		PerformanceBaseField:  model.PriceField(d.PerformanceBaseField),
		PerformanceTable:      FloorTable(d.PerformanceTable),
		FullScoreRatio:        d.FullScoreRatio,
		DebtTable:             CeilingTable(d.Management.DebtTable),
		CurrentTable:          FloorTable(d.Management.CurrentTable),
		CreditTable:           CreditTable(d.Management.CreditTable),
		ManagementCap:         d.Management.Cap,
		PerformanceCap:        d.PerformanceCap,
		TotalCap:              d.TotalCap,
		DefaultBidScore:       d.DefaultBidScore,
	}, nil
}

// Validate checks a rule set for internal consistency.
func Validate(rs RuleSet) error {
	key := rs.Key.String()
	switch {
	case !rs.Key.Valid():
		return &ConfigurationError{Key: key, Err: ErrUnknownRuleSet}
	case rs.ManagementCap <= 0 || rs.PerformanceCap <= 0 || rs.TotalCap <= 0:
		return configErr(key, "%w: caps must be positive", ErrInvalidTable)
	case rs.PerformanceMultiplier <= 0:
		return configErr(key, "%w: performance multiplier must be positive", ErrInvalidTable)
	case !rs.PerformanceBaseField.Valid():
		return configErr(key, "%w: unknown performance base field %q", ErrInvalidTable, rs.PerformanceBaseField)
	case rs.DefaultBidScore < 0:
		return configErr(key, "%w: default bid score is negative", ErrInvalidTable)
	}

	switch rs.PerformanceMethod {
	case MethodRatioTable:
		if err := checkFloor(rs.PerformanceTable); err != nil {
			return configErr(key, "%w: performance table: %w", ErrInvalidTable, err)
		}
	case MethodDirectFormula:
		if rs.PerformanceParams.BaseMultiplier <= 0 || rs.PerformanceParams.MaxScore <= 0 {
			return configErr(key, "%w: direct formula needs positive base_multiplier and max_score", ErrInvalidTable)
		}
	default:
		return configErr(key, "%w: unknown performance method %q", ErrInvalidTable, rs.PerformanceMethod)
	}

	if err := checkCeiling(rs.DebtTable); err != nil {
		return configErr(key, "%w: debt table: %w", ErrInvalidTable, err)
	}
	if err := checkFloor(rs.CurrentTable); err != nil {
		return configErr(key, "%w: current table: %w", ErrInvalidTable, err)
	}
	if err := checkCredit(rs.CreditTable); err != nil {
		return configErr(key, "%w: credit table: %w", ErrInvalidTable, err)
	}
	return nil
}

// checkCeiling requires increasing bounds with non-increasing scores.
func checkCeiling(t CeilingTable) error {
	if len(t) == 0 {
		return errEmptyTable
	}
	for i := 1; i < len(t); i++ {
		if t[i].Bound <= t[i-1].Bound {
			return fmt.Errorf("bounds not strictly increasing at step %d", i)
		}
		if t[i].Score > t[i-1].Score {
			return fmt.Errorf("score rises at step %d", i)
		}
	}
	return checkScores(t)
}

// checkFloor requires decreasing bounds with non-increasing scores.
func checkFloor(t FloorTable) error {
	if len(t) == 0 {
		return errEmptyTable
	}
	for i := 1; i < len(t); i++ {
		if t[i].Bound >= t[i-1].Bound {
			return fmt.Errorf("bounds not strictly decreasing at step %d", i)
		}
		if t[i].Score > t[i-1].Score {
			return fmt.Errorf("score rises at step %d", i)
		}
	}
	return checkScores(t)
}

func checkScores(steps []Step) error {
	for i, s := range steps {
		if s.Score < 0 {
			return fmt.Errorf("negative score at step %d", i)
		}
	}
	return nil
}

func checkCredit(t CreditTable) error {
	if len(t) == 0 {
		return errEmptyTable
	}
	seen := make([]string, 0, len(t))
	for i, g := range t {
		n := NormalizeGrade(g.Grade)
		if n == "" {
			return fmt.Errorf("blank grade at entry %d", i)
		}
		if slices.Contains(seen, n) {
			return fmt.Errorf("duplicate grade %q", g.Grade)
		}
		if g.Score < 0 {
			return fmt.Errorf("negative score for grade %q", g.Grade)
		}
		seen = append(seen, n)
	}
	return nil
}
