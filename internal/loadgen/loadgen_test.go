package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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

func TestGenerateRequest(t *testing.T) {
	Convey("Given generated consortiums", t, func() {
		candidates := generateTender("T-1", 20)

		Convey("Then each is well formed", func() {
			So(len(candidates), ShouldEqual, 20)
			for _, c := range candidates {
				So(c.TenderID, ShouldEqual, "T-1")
				So(len(c.Request.Members), ShouldBeBetweenOrEqual, 2, 3)
				sum := 0.0
				for _, m := range c.Request.Members {
					So(m.Share, ShouldBeGreaterThan, 0)
					sum += m.Share
				}
				So(math.Abs(sum-1), ShouldBeLessThan, 1e-9)
				So(c.Request.RuleKey.Valid(), ShouldBeTrue)
			}
		})

		Convey("And they split into bounded batches", func() {
			subs := splitBatches("T-1", candidates, 8)
			So(len(subs), ShouldEqual, 3)
			So(len(subs[2].body.Candidates), ShouldEqual, 4)
			So(subs[0].body.IdempotencyKey, ShouldNotEqual, subs[1].body.IdempotencyKey)
		})
	})
}

func TestVerifyRanking(t *testing.T) {
	Convey("Given rankings", t, func() {
		Convey("When scores fall with dense tie ranks", func() {
			entries := []Entry{
				{Rank: 1, ExpectedScore: 90}, {Rank: 1, ExpectedScore: 90},
				{Rank: 2, ExpectedScore: 80}, {Rank: 3, ExpectedScore: 70},
			}
			So(verifyRanking(entries), ShouldBeNil)
			So(verifyRanking(nil), ShouldBeNil)
		})

		Convey("When a score rises", func() {
			entries := []Entry{{Rank: 1, ExpectedScore: 80}, {Rank: 2, ExpectedScore: 90}}
			So(errors.Is(verifyRanking(entries), ErrInconsistentRanking), ShouldBeTrue)
		})

		Convey("When ties have different ranks", func() {
			entries := []Entry{{Rank: 1, ExpectedScore: 80}, {Rank: 2, ExpectedScore: 80}}
			So(errors.Is(verifyRanking(entries), ErrInconsistentRanking), ShouldBeTrue)
		})

		Convey("When a rank is skipped", func() {
			entries := []Entry{{Rank: 1, ExpectedScore: 80}, {Rank: 3, ExpectedScore: 70}}
			So(errors.Is(verifyRanking(entries), ErrInconsistentRanking), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running consortium service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		output := filepath.Join(t.TempDir(), "out", "candidates.json")
		config := &Config{
			BaseURL:    srv.URL,
			Tenders:    3,
			Candidates: 25,
			BatchSize:  10,
			TopN:       50,
			Workers:    2,
			Timeout:    5 * time.Second,
			Wait:       10 * time.Second,
			OutputFile: output,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(ctx, config)

			Convey("Then every candidate is saved and ranked", func() {
				So(err, ShouldBeNil)
				So(stats.CandidatesGenerated, ShouldEqual, 75)
				So(stats.BatchesSubmitted, ShouldEqual, 9)
				So(stats.BatchesRejected, ShouldEqual, 0)
				So(stats.ResultsSaved, ShouldEqual, 75)
				So(stats.RankingsChecked, ShouldEqual, 3)
				So(svc.GetStats()["saved_results"], ShouldEqual, 75)
			})

			Convey("And the candidates are written out", func() {
				raw, err := os.ReadFile(output)
				So(err, ShouldBeNil)
				var saved []Candidate
				So(json.Unmarshal(raw, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, 75)
			})
		})
	})

	Convey("Given no service", t, func() {
		_, err := Run(context.Background(), &Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Workers: 1, BatchSize: 1})
		So(err, ShouldNotBeNil)
	})
}
