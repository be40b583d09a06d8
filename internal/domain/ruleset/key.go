package ruleset

import (
	"fmt"
	"slices"
	"strings"
)

// Jurisdiction is the procurement authority whose rules apply.
type Jurisdiction string

// Supported jurisdictions.
const (
	JurisdictionMOIS Jurisdiction = "mois" // 행안부
	JurisdictionPPS  Jurisdiction = "pps"  // 조달청
)

// Tier is the tender size bracket within a jurisdiction.
type Tier string

// Supported tiers. The valid set depends on the jurisdiction.
const (
	TierUnder3B Tier = "under-3b"
	Tier3BPlus  Tier = "3b-plus"
	TierUnder5B Tier = "under-5b"
	Tier5BTo10B Tier = "5b-to-10b"
	Tier10BPlus Tier = "10b-plus"
)

var jurisdictionTiers = map[Jurisdiction][]Tier{
	JurisdictionMOIS: {TierUnder3B, Tier3BPlus},
	JurisdictionPPS:  {TierUnder5B, Tier5BTo10B, Tier10BPlus},
}

var jurisdictionLabels = map[string]Jurisdiction{
	"mois": JurisdictionMOIS,
	"행안부":  JurisdictionMOIS,
	"pps":  JurisdictionPPS,
	"조달청":  JurisdictionPPS,
}

var tierLabels = map[string]Tier{
	"under-3b":  TierUnder3B,
	"30억미만":     TierUnder3B,
	"3b-plus":   Tier3BPlus,
	"30억이상":     Tier3BPlus,
	"under-5b":  TierUnder5B,
	"50억미만":     TierUnder5B,
	"5b-to-10b": Tier5BTo10B,
	"50억~100억":  Tier5BTo10B,
	"10b-plus":  Tier10BPlus,
	"100억이상":    Tier10BPlus,
}

// ParseJurisdiction accepts the canonical token or the ministry label.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	if j, ok := jurisdictionLabels[normalizeLabel(s)]; ok {
		return j, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJurisdiction, s)
}

// ParseTier accepts the canonical token or the amount label.
func ParseTier(s string) (Tier, error) {
	if t, ok := tierLabels[normalizeLabel(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// UnmarshalText maps known labels to the canonical token. Unknown values are
// kept so that resolution reports them as a ConfigurationError.
func (j *Jurisdiction) UnmarshalText(b []byte) error {
	if v, err := ParseJurisdiction(string(b)); err == nil {
		*j = v
		return nil
	}
	*j = Jurisdiction(b)
	return nil
}

// UnmarshalText maps known labels to the canonical token. Unknown values are
// kept so that resolution reports them as a ConfigurationError.
func (t *Tier) UnmarshalText(b []byte) error {
	if v, err := ParseTier(string(b)); err == nil {
		*t = v
		return nil
	}
	*t = Tier(b)
	return nil
}

// Tiers lists the tiers defined for j.
func (j Jurisdiction) Tiers() []Tier { return slices.Clone(jurisdictionTiers[j]) }

// Key identifies one rule set.
type Key struct {
	Jurisdiction Jurisdiction `json:"jurisdiction" yaml:"jurisdiction"`
	Tier         Tier         `json:"tier" yaml:"tier"`
}

// NewKey parses both halves and checks that the tier belongs to the jurisdiction.
func NewKey(jurisdiction, tier string) (Key, error) {
	j, err := ParseJurisdiction(jurisdiction)
	if err != nil {
		return Key{}, &ConfigurationError{Key: jurisdiction + "/" + tier, Err: err}
	}
	t, err := ParseTier(tier)
	if err != nil {
		return Key{}, &ConfigurationError{Key: jurisdiction + "/" + tier, Err: err}
	}
	k := Key{Jurisdiction: j, Tier: t}
	if !k.Valid() {
		return Key{}, &ConfigurationError{Key: k.String(), Err: ErrUnknownRuleSet}
	}
	return k, nil
}

// ParseKey parses the "jurisdiction/tier" form produced by String.
func ParseKey(s string) (Key, error) {
	j, t, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, &ConfigurationError{Key: s, Err: ErrUnknownRuleSet}
	}
	return NewKey(j, t)
}

// Valid reports whether the tier is defined for the jurisdiction.
func (k Key) Valid() bool { return slices.Contains(jurisdictionTiers[k.Jurisdiction], k.Tier) }

func (k Key) String() string { return string(k.Jurisdiction) + "/" + string(k.Tier) }

// AllKeys lists every defined key in a stable order.
func AllKeys() []Key {
	var keys []Key
	for _, j := range []Jurisdiction{JurisdictionMOIS, JurisdictionPPS} {
		for _, t := range jurisdictionTiers[j] {
			keys = append(keys, Key{Jurisdiction: j, Tier: t})
		}
	}
	return keys
}
