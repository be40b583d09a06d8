package compliance

import (
	"fmt"
	"strings"

	model "github.com/okian/consortium/internal/domain/model"
)

// SoloBidConfig holds the tender's standalone thresholds. A zero threshold
// disables that criterion.
type SoloBidConfig struct {
	CapacityThreshold    float64 `json:"capacity_threshold" yaml:"capacity_threshold"`
	PerformanceThreshold float64 `json:"performance_threshold" yaml:"performance_threshold"`
}

// Configured reports whether any criterion is active.
func (c SoloBidConfig) Configured() bool {
	return c.CapacityThreshold > 0 || c.PerformanceThreshold > 0
}

// SoloBidResult annotates whether a member could bid alone.
type SoloBidResult struct {
	Role     model.Role `json:"role"`
	Name     string     `json:"name"`
	Possible bool       `json:"possible"`
	Reason   string     `json:"reason"`
}

// SoloBid flags members whose own figures already meet every configured
// threshold. It is a warning only and never blocks an evaluation.
func SoloBid(members []model.ConsortiumMember, cfg SoloBidConfig) []SoloBidResult {
	out := make([]SoloBidResult, 0, len(members))
	for _, m := range members {
		r := SoloBidResult{Role: m.Role, Name: m.Company.Name}
		if !cfg.Configured() {
			r.Reason = "solo-bid threshold not configured"
			out = append(out, r)
			continue
		}

		var met, missed []string
		if cfg.CapacityThreshold > 0 {
			line := fmt.Sprintf("capacity %s vs %s", dec(m.Company.Capacity).StringFixed(0), dec(cfg.CapacityThreshold).StringFixed(0))
			if m.Company.Capacity >= cfg.CapacityThreshold {
				met = append(met, line)
			} else {
				missed = append(missed, line)
			}
		}
		if cfg.PerformanceThreshold > 0 {
			line := fmt.Sprintf("5y performance %s vs %s", dec(m.Company.Performance5Y).StringFixed(0), dec(cfg.PerformanceThreshold).StringFixed(0))
			if m.Company.Performance5Y >= cfg.PerformanceThreshold {
				met = append(met, line)
			} else {
				missed = append(missed, line)
			}
		}

		if len(missed) == 0 {
			r.Possible = true
			r.Reason = "meets solo-bid thresholds: " + strings.Join(met, "; ")
		} else {
			r.Reason = "below solo-bid thresholds: " + strings.Join(missed, "; ")
		}
		out = append(out, r)
	}
	return out
}
