package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/consortium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MaxBatchSize, convey.ShouldEqual, 500)
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.RulesFile, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"watch without file", func(c *config.Config) { c.WatchRules = true }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative workers", func(c *config.Config) { c.WorkerCount = -1 }},
			{"zero dedupe", func(c *config.Config) { c.DedupeSize = 0 }},
			{"zero batch", func(c *config.Config) { c.MaxBatchSize = 0 }},
			{"zero ranking", func(c *config.Config) { c.MaxRankingLimit = 0 }},
			{"zero tolerance", func(c *config.Config) { c.ShareTolerance = 0 }},
			{"zero timeout", func(c *config.Config) { c.ShutdownTimeout = 0 }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		}
	})
}
