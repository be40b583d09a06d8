package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/okian/consortium/internal/domain/ruleset"
	"github.com/okian/consortium/pkg/logger"
	"github.com/okian/consortium/pkg/metrics"
)

// Reload outcomes reported to metrics.
const (
	reloadOK     = "ok"
	reloadFailed = "failed"
)

// rules holds the active registry. Reloads swap it whole so an evaluation
// never sees two table versions.
type rules struct {
	current atomic.Pointer[ruleset.Registry]
}

func newRules(reg *ruleset.Registry) *rules {
	r := &rules{}
	r.current.Store(reg)
	return r
}

func (r *rules) get() *ruleset.Registry { return r.current.Load() }

func (r *rules) set(reg *ruleset.Registry) { r.current.Store(reg) }

// Resolve implements evaluation.RuleSource.
func (r *rules) Resolve(k ruleset.Key) (ruleset.RuleSet, error) {
	return r.get().Resolve(k)
}

func loadRegistry(path string) (*ruleset.Registry, error) {
	if path == "" {
		reg, err := ruleset.Default()
		if err != nil {
			return nil, fmt.Errorf("%w: embedded: %w", ErrRulesLoad, err)
		}
		return reg, nil
	}
	reg, err := ruleset.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRulesLoad, path, err)
	}
	return reg, nil
}

// watch reloads the rules file until ctx is cancelled. A broken file keeps
// the previous tables in force.
func (s *Service) watch(ctx context.Context) {
	log := s.logger.Named("rules")
	err := ruleset.Watch(ctx, s.rulesFile,
		func(reg *ruleset.Registry) {
			s.rules.set(reg)
			metrics.RecordRulesReload(reloadOK)
			metrics.UpdateRuleSets(reg.Len())
			log.Info(ctx, "rule tables reloaded",
				logger.String("path", s.rulesFile),
				logger.Int("rule_sets", reg.Len()),
			)
		},
		func(err error) {
			metrics.RecordRulesReload(reloadFailed)
			metrics.RecordError("rules", "reload")
			log.Error(ctx, "rule tables reload failed, keeping previous tables", logger.Error(err))
		},
	)
	if err != nil {
		metrics.RecordError("rules", "watch")
		log.Error(ctx, "rules watcher stopped", logger.Error(err))
	}
}
