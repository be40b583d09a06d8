package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/consortium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"CONSORTIUM_CONFIG", "CONSORTIUM_ADDR", "CONSORTIUM_QUEUE_SIZE", "CONSORTIUM_WORKER_COUNT",
	"CONSORTIUM_LOG_LEVEL", "CONSORTIUM_LOG_FORMAT", "CONSORTIUM_RULES_FILE", "CONSORTIUM_WATCH_RULES",
	"CONSORTIUM_SHUTDOWN_TIMEOUT", "CONSORTIUM_SHARE_TOLERANCE",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "consortium-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WatchRules, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CONSORTIUM_ADDR", ":8080")
			_ = os.Setenv("CONSORTIUM_QUEUE_SIZE", "250")
			_ = os.Setenv("CONSORTIUM_LOG_FORMAT", "json")
			_ = os.Setenv("CONSORTIUM_SHUTDOWN_TIMEOUT", "3s")
			_ = os.Setenv("CONSORTIUM_SHARE_TOLERANCE", "0.01")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 250)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.ShareTolerance, convey.ShouldEqual, 0.01)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
# rule tables live next to the binary
addr: ":9090"
queue_size: 300
worker_count: 3
rules_file: /etc/consortium/rules.yaml
watch_rules: true
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CONSORTIUM_CONFIG", tmpFile)
			_ = os.Setenv("CONSORTIUM_WORKER_COUNT", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.RulesFile, convey.ShouldEqual, "/etc/consortium/rules.yaml")
				convey.So(cfg.WatchRules, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CONSORTIUM_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CONSORTIUM_CONFIG", "/nonexistent/consortium.yaml")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a loaded value is invalid", func() {
			_ = os.Setenv("CONSORTIUM_QUEUE_SIZE", "0")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When watching is requested without a rules file", func() {
			_ = os.Setenv("CONSORTIUM_WATCH_RULES", "true")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
