package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/consortium/internal/adapters/http/api"
	service "github.com/okian/consortium/internal/app"
	"github.com/okian/consortium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports as stopped", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queue_capacity"], ShouldEqual, 10_000)
			So(stats["dedupe_size"], ShouldEqual, 50_000)
		})

		Convey("And operations are refused before start", func() {
			ctx := context.Background()
			res, err := svc.Evaluate(ctx, sampleRequest())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(err, api.ErrUnavailable), ShouldBeTrue)
			So(res.Failed, ShouldBeTrue)

			_, err = svc.Ranking(ctx, "T-1", 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.RuleSets(ctx), ShouldBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithMaxRankingLimit(20),
			service.WithShareTolerance(0.01),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["worker_count"], ShouldEqual, 3)
			So(stats["queue_capacity"], ShouldEqual, 50)
			So(stats["dedupe_size"], ShouldEqual, 25)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then stats include the runtime state", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queue_length"], ShouldEqual, 0)
				So(stats["saved_results"], ShouldEqual, 0)
				So(stats["rule_sets"], ShouldEqual, 5)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping returns it to stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a rules file that does not exist", t, func() {
		svc := service.New(service.WithRulesFile("/nonexistent/rules.yaml", false))
		err := svc.Start(context.Background())

		Convey("Then start fails with a rules error", func() {
			So(errors.Is(err, service.ErrRulesLoad), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}
