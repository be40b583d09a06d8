package ruleset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ruleset "github.com/okian/consortium/internal/domain/ruleset"
	. "github.com/smartystreets/goconvey/convey"
)

const singleRuleSet = `
rulesets:
  - jurisdiction: 행안부
    tier: 30억미만
    name: test
    performance_multiplier: 1
    performance_method: ratio_table
    performance_base_field: estimate_price
    performance_table:
      - {bound: 100, score: 15}
      - {bound: 50, score: 7.5}
      - {bound: 0, score: 0}
    management:
      cap: 15
      debt_table:
        - {bound: 100, score: 8}
        - {bound: 200, score: 4}
      current_table:
        - {bound: 100, score: 7}
        - {bound: 0, score: 3.5}
      credit_table:
        - {grade: A0, score: 15}
    performance_cap: 15
    total_cap: 95
    default_bid_score: 65
`

func TestKeys(t *testing.T) {
	Convey("Given jurisdiction and tier labels", t, func() {
		Convey("When both halves are canonical", func() {
			k, err := ruleset.NewKey("pps", "5b-to-10b")
			So(err, ShouldBeNil)
			So(k.String(), ShouldEqual, "pps/5b-to-10b")
		})

		Convey("When the ministry labels are used", func() {
			k, err := ruleset.NewKey("조달청", "100억 이상")
			So(err, ShouldBeNil)
			So(k, ShouldResemble, ruleset.Key{Jurisdiction: ruleset.JurisdictionPPS, Tier: ruleset.Tier10BPlus})
		})

		Convey("When the tier belongs to another jurisdiction", func() {
			_, err := ruleset.NewKey("mois", "under-5b")
			So(ruleset.IsConfigurationError(err), ShouldBeTrue)
			So(errors.Is(err, ruleset.ErrUnknownRuleSet), ShouldBeTrue)
		})

		Convey("When a half is unknown", func() {
			_, err := ruleset.NewKey("kepco", "under-3b")
			So(errors.Is(err, ruleset.ErrUnknownJurisdiction), ShouldBeTrue)
			_, err = ruleset.ParseKey("mois/huge")
			So(errors.Is(err, ruleset.ErrUnknownTier), ShouldBeTrue)
			_, err = ruleset.ParseKey("mois")
			So(ruleset.IsConfigurationError(err), ShouldBeTrue)
		})

		Convey("Then every defined key round-trips", func() {
			keys := ruleset.AllKeys()
			So(len(keys), ShouldEqual, 5)
			for _, k := range keys {
				parsed, err := ruleset.ParseKey(k.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldResemble, k)
			}
		})
	})
}

func TestDefaultRegistry(t *testing.T) {
	Convey("Given the embedded rule tables", t, func() {
		reg, err := ruleset.Default()
		So(err, ShouldBeNil)

		Convey("Then every defined key resolves", func() {
			So(reg.Len(), ShouldEqual, len(ruleset.AllKeys()))
			for _, k := range ruleset.AllKeys() {
				rs, err := reg.Resolve(k)
				So(err, ShouldBeNil)
				So(rs.Key, ShouldResemble, k)
				So(rs.ManagementCap, ShouldEqual, 15)
				So(rs.PerformanceCap, ShouldEqual, 15)
				So(rs.TotalCap, ShouldEqual, 95)
			}
		})

		Convey("Then List keeps definition order", func() {
			list := reg.List()
			So(list[0].Key.String(), ShouldEqual, "mois/under-3b")
			So(list[len(list)-1].Key.String(), ShouldEqual, "pps/10b-plus")
		})

		Convey("Then ratio table scores never decrease as the ratio grows", func() {
			rs, err := reg.Resolve(ruleset.Key{Jurisdiction: ruleset.JurisdictionMOIS, Tier: ruleset.TierUnder3B})
			So(err, ShouldBeNil)
			prev := -1.0
			for ratio := -10.0; ratio <= 500; ratio += 0.5 {
				s := rs.PerformanceScore(ratio)
				So(s, ShouldBeGreaterThanOrEqualTo, prev)
				So(s, ShouldBeBetweenOrEqual, 0.0, rs.PerformanceCap)
				prev = s
			}
			So(rs.PerformanceScore(100), ShouldEqual, 15)
			So(rs.PerformanceScore(1e9), ShouldEqual, 15)
			So(rs.PerformanceScore(55), ShouldEqual, 7.5)
		})

		Convey("Then a qualifying full score ratio earns the maximum", func() {
			rs, err := reg.Resolve(ruleset.Key{Jurisdiction: ruleset.JurisdictionPPS, Tier: ruleset.TierUnder5B})
			So(err, ShouldBeNil)
			So(rs.FullScoreRatio, ShouldEqual, 80)
			So(rs.PerformanceScore(79.9), ShouldEqual, 10.5)
			So(rs.PerformanceScore(80), ShouldEqual, 15)
		})
	})
}

func TestTables(t *testing.T) {
	Convey("Given threshold tables", t, func() {
		debt := ruleset.CeilingTable{{Bound: 50, Score: 8}, {Bound: 100, Score: 6}, {Bound: 200, Score: 4}}
		current := ruleset.FloorTable{{Bound: 150, Score: 7}, {Bound: 100, Score: 5}, {Bound: 50, Score: 3}}

		Convey("Then lower debt ratios score higher", func() {
			So(debt.Lookup(10), ShouldEqual, 8)
			So(debt.Lookup(50), ShouldEqual, 8)
			So(debt.Lookup(50.01), ShouldEqual, 6)
			So(debt.Max(), ShouldEqual, 8)
		})

		Convey("Then out of range values clamp to the boundary bracket", func() {
			So(debt.Lookup(10_000), ShouldEqual, 4)
			So(current.Lookup(10_000), ShouldEqual, 7)
			So(current.Lookup(1), ShouldEqual, 3)
		})

		Convey("Then credit grades match regardless of case and spacing", func() {
			credit := ruleset.CreditTable{{Grade: "BBB+", Score: 15}, {Grade: "B0", Score: 13}}
			s, ok := credit.Lookup(" bbb+ ")
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, 15)
			_, ok = credit.Lookup("Z")
			So(ok, ShouldBeFalse)
		})

		Convey("Then empty tables score zero", func() {
			So(ruleset.CeilingTable(nil).Lookup(1), ShouldEqual, 0)
			So(ruleset.FloorTable(nil).Lookup(1), ShouldEqual, 0)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a rule file with a single rule set", t, func() {
		reg, err := ruleset.Load(strings.NewReader(singleRuleSet))
		So(err, ShouldBeNil)

		Convey("When resolving a key the file does not define", func() {
			_, err := reg.Resolve(ruleset.Key{Jurisdiction: ruleset.JurisdictionPPS, Tier: ruleset.TierUnder5B})

			Convey("Then a configuration error is returned", func() {
				So(ruleset.IsConfigurationError(err), ShouldBeTrue)
				So(errors.Is(err, ruleset.ErrUnknownRuleSet), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "pps/under-5b")
			})
		})
	})

	Convey("Given invalid rule files", t, func() {
		cases := []struct {
			name string
			doc  string
		}{
			{"unknown method", strings.Replace(singleRuleSet, "ratio_table", "guess", 1)},
			{"unknown base field", strings.Replace(singleRuleSet, "estimate_price", "contract_price", 1)},
			{"rising debt score", strings.Replace(singleRuleSet, "{bound: 200, score: 4}", "{bound: 200, score: 9}", 1)},
			{"unordered bounds", strings.Replace(singleRuleSet, "{bound: 50, score: 7.5}", "{bound: 150, score: 7.5}", 1)},
			{"zero cap", strings.Replace(singleRuleSet, "performance_cap: 15", "performance_cap: 0", 1)},
			{"unknown field", singleRuleSet + "    surprise: true\n"},
			{"unknown tier", strings.Replace(singleRuleSet, "30억미만", "999억", 1)},
			{"no rule sets", "rulesets: []\n"},
		}

		for _, tc := range cases {
			Convey("When loading a file with "+tc.name, func() {
				_, err := ruleset.Load(strings.NewReader(tc.doc))
				So(ruleset.IsConfigurationError(err), ShouldBeTrue)
			})
		}

		Convey("When a key is defined twice", func() {
			body := strings.TrimPrefix(singleRuleSet, "\nrulesets:\n")
			_, err := ruleset.Load(strings.NewReader("rulesets:\n" + body + body))
			So(errors.Is(err, ruleset.ErrDuplicateRuleSet), ShouldBeTrue)
		})
	})
}

func TestWatch(t *testing.T) {
	Convey("Given a watched rule file", t, func() {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		So(os.WriteFile(path, []byte(singleRuleSet), 0o600), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloaded := make(chan *ruleset.Registry, 16)
		failed := make(chan error, 16)
		done := make(chan error, 1)
		go func() {
			done <- ruleset.Watch(ctx, path, func(r *ruleset.Registry) { reloaded <- r }, func(err error) { failed <- err })
		}()
		time.Sleep(100 * time.Millisecond)

		Convey("When the file is rewritten with valid tables", func() {
			So(os.WriteFile(path, []byte(strings.Replace(singleRuleSet, "name: test", "name: updated", 1)), 0o600), ShouldBeNil)

			Convey("Then the new registry is delivered", func() {
				select {
				case reg := <-reloaded:
					So(reg.List()[0].Name, ShouldEqual, "updated")
				case <-time.After(3 * time.Second):
					So("timeout waiting for reload", ShouldBeEmpty)
				}
			})
		})

		Convey("When a new version is renamed over the file", func() {
			tmp := path + ".tmp"
			So(os.WriteFile(tmp, []byte(strings.Replace(singleRuleSet, "name: test", "name: renamed", 1)), 0o600), ShouldBeNil)
			So(os.Rename(tmp, path), ShouldBeNil)

			Convey("Then it is reloaded and later writes still are", func() {
				So(awaitName(reloaded, "renamed"), ShouldBeTrue)

				So(os.WriteFile(path, []byte(strings.Replace(singleRuleSet, "name: test", "name: after", 1)), 0o600), ShouldBeNil)
				So(awaitName(reloaded, "after"), ShouldBeTrue)
			})
		})

		Convey("When a sibling file changes", func() {
			So(os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("rulesets: [\n"), 0o600), ShouldBeNil)

			Convey("Then nothing is reloaded", func() {
				select {
				case <-reloaded:
					So("unexpected reload", ShouldBeEmpty)
				case err := <-failed:
					So(err, ShouldBeNil)
				case <-time.After(300 * time.Millisecond):
				}
			})
		})

		Convey("When the file is rewritten with broken tables", func() {
			So(os.WriteFile(path, []byte("rulesets: [\n"), 0o600), ShouldBeNil)

			Convey("Then the error is reported", func() {
				select {
				case err := <-failed:
					So(ruleset.IsConfigurationError(err), ShouldBeTrue)
				case <-time.After(3 * time.Second):
					So("timeout waiting for reload error", ShouldBeEmpty)
				}
			})
		})

		Convey("When the context is cancelled", func() {
			cancel()
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(3 * time.Second):
				So("watch did not stop", ShouldBeEmpty)
			}
		})
	})
}

// awaitName drains reloads until one carries name or the wait times out.
func awaitName(reloaded <-chan *ruleset.Registry, name string) bool {
	deadline := time.After(3 * time.Second)
	for {
		select {
		case reg := <-reloaded:
			if reg.List()[0].Name == name {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
