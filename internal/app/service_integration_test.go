package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/consortium/internal/adapters/http/api"
	"github.com/okian/consortium/internal/adapters/repository"
	service "github.com/okian/consortium/internal/app"
	compliance "github.com/okian/consortium/internal/domain/compliance"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func sampleRequest() evaluation.Request {
	current := model.FieldStatus{
		model.FieldDebtRatio:     model.FreshnessCurrent,
		model.FieldCurrentRatio:  model.FreshnessCurrent,
		model.FieldPerformance5Y: model.FreshnessCurrent,
	}
	return evaluation.Request{
		Members: []model.ConsortiumMember{
			{
				Company: model.Company{
					Name: "Gyeonggi Build", Region: "경기도 수원시", Capacity: 100,
					Performance5Y: 600, DebtRatio: ptr(40), CurrentRatio: ptr(160), Status: current,
				},
				Role:  model.RoleLead,
				Share: 0.6,
			},
			{
				Company: model.Company{
					Name: "Seoul Works", Region: "서울특별시", Capacity: 50,
					Performance5Y: 400, DebtRatio: ptr(120), CurrentRatio: ptr(80),
					CreditRating: "A0 (2024.06.30~2025.06.29)", Status: current,
				},
				Role:  model.MemberRole(1),
				Share: 0.4,
			},
		},
		Price:            model.PriceContext{EstimatePrice: 1000, NoticeBaseAmount: 1200, BidRate: 90, AssessmentRate: 100},
		AnnouncementDate: model.NewDate(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
		RuleKey:          ruleset.Key{Jurisdiction: ruleset.JurisdictionMOIS, Tier: ruleset.TierUnder3B},
		Capacity:         compliance.CapacityConfig{Limited: true, LimitAmount: 70, Method: compliance.CapacityRatio},
		Region:           "경기",
		DutyRatio:        49,
	}
}

func waitForBatch(ctx context.Context, svc *service.Service, id string) api.BatchStatus {
	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := svc.Batch(ctx, id)
		if err == nil && st.Status == api.BatchDone {
			return st
		}
		if time.Now().After(deadline) {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func batchOf(key string, requests ...evaluation.Request) api.BatchSubmission {
	sub := api.BatchSubmission{IdempotencyKey: key, TenderID: "T-100"}
	for i, r := range requests {
		sub.Candidates = append(sub.Candidates, api.BatchCandidate{
			Candidate: "candidate-" + string(rune('a'+i)),
			Request:   r,
		})
	}
	return sub
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(50),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a consortium is evaluated", func() {
			res, err := svc.Evaluate(ctx, sampleRequest())

			Convey("Then it is scored against the embedded tables", func() {
				So(err, ShouldBeNil)
				So(res.Failed, ShouldBeFalse)
				So(res.ExpectedScore, ShouldEqual, 87.5)
				So(res.RuleKey, ShouldEqual, "mois/under-3b")
			})
		})

		Convey("When the rule key is unknown", func() {
			req := sampleRequest()
			req.RuleKey = ruleset.Key{Jurisdiction: "kepco", Tier: "any"}
			res, err := svc.Evaluate(ctx, req)
			So(res.Failed, ShouldBeTrue)
			So(ruleset.IsConfigurationError(err), ShouldBeTrue)
		})

		Convey("When share limits are checked", func() {
			req := sampleRequest()
			res := svc.CheckShareLimit(ctx, req.Members, req.Price.BidAmount())
			So(len(res), ShouldEqual, 2)
			So(res[0].IsProblem, ShouldBeTrue)
		})

		Convey("When rule sets are listed", func() {
			sets := svc.RuleSets(ctx)
			So(len(sets), ShouldEqual, 5)
			So(sets[0].Key, ShouldEqual, "mois/under-3b")
		})

		Convey("When results are saved for a tender", func() {
			strong, err := svc.Evaluate(ctx, sampleRequest())
			So(err, ShouldBeNil)
			weakReq := sampleRequest()
			weakReq.Members[0].Company.Performance5Y = 0
			weak, err := svc.Evaluate(ctx, weakReq)
			So(err, ShouldBeNil)

			weakID, err := svc.SaveResult(ctx, repository.Record{TenderID: "T-1", Candidate: "weak", Result: weak})
			So(err, ShouldBeNil)
			strongID, err := svc.SaveResult(ctx, repository.Record{TenderID: "T-1", Candidate: "strong", Result: strong})
			So(err, ShouldBeNil)

			Convey("Then the ranking orders them by expected score", func() {
				entries, err := svc.Ranking(ctx, "T-1", 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].ID, ShouldEqual, strongID)
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].ID, ShouldEqual, weakID)
			})

			Convey("And each result can be read back", func() {
				rec, err := svc.GetResult(ctx, strongID)
				So(err, ShouldBeNil)
				So(rec.Candidate, ShouldEqual, "strong")
				So(svc.GetStats()["saved_results"], ShouldEqual, 2)
			})
		})

		Convey("When a batch is submitted", func() {
			bad := sampleRequest()
			bad.Members = nil
			sub := batchOf("batch-1", sampleRequest(), bad, sampleRequest())

			st, err := svc.SubmitBatch(ctx, sub)
			So(err, ShouldBeNil)
			So(st.ID, ShouldNotBeEmpty)
			So(st.Total, ShouldEqual, 3)
			So(st.Duplicate, ShouldBeFalse)

			Convey("Then every candidate is processed", func() {
				done := waitForBatch(ctx, svc, st.ID)
				So(done.Status, ShouldEqual, api.BatchDone)
				So(done.Completed, ShouldEqual, 2)
				So(done.Failed, ShouldEqual, 1)
				So(len(done.ResultIDs), ShouldEqual, 2)
				So(done.Errors[0].Index, ShouldEqual, 1)

				entries, err := svc.Ranking(ctx, "T-100", 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
			})

			Convey("And resubmitting the key returns the same batch", func() {
				again, err := svc.SubmitBatch(ctx, sub)
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, st.ID)
				So(again.Duplicate, ShouldBeTrue)
			})
		})

		Convey("When an unknown batch is requested", func() {
			_, err := svc.Batch(ctx, "missing")
			So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a service with a tiny queue", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(2))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a batch larger than the free space arrives", func() {
			sub := batchOf("big", sampleRequest(), sampleRequest(), sampleRequest())
			_, err := svc.SubmitBatch(ctx, sub)

			Convey("Then it is refused whole and the key is released", func() {
				So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)

				sub.Candidates = sub.Candidates[:1]
				st, err := svc.SubmitBatch(ctx, sub)
				So(err, ShouldBeNil)
				So(st.Duplicate, ShouldBeFalse)
				So(waitForBatch(ctx, svc, st.ID).Completed, ShouldEqual, 1)
			})
		})
	})
}

func TestServiceRulesReload(t *testing.T) {
	Convey("Given a service watching a rules file with one rule set", t, func() {
		full, err := os.ReadFile(filepath.Join("..", "domain", "ruleset", "rules.yaml"))
		So(err, ShouldBeNil)
		lines := strings.Split(string(full), "\n")
		first := strings.Join(lines[:65], "\n") + "\n"

		path := filepath.Join(t.TempDir(), "rules.yaml")
		So(os.WriteFile(path, []byte(first), 0o600), ShouldBeNil)

		svc := service.New(service.WithWorkerCount(1), service.WithRulesFile(path, true))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		So(len(svc.RuleSets(ctx)), ShouldEqual, 1)

		Convey("When the file is replaced by a broken document", func() {
			So(os.WriteFile(path, []byte("rulesets: [\n"), 0o600), ShouldBeNil)
			time.Sleep(200 * time.Millisecond)

			Convey("Then the previous tables stay in force", func() {
				So(len(svc.RuleSets(ctx)), ShouldEqual, 1)
				res, err := svc.Evaluate(ctx, sampleRequest())
				So(err, ShouldBeNil)
				So(res.ExpectedScore, ShouldEqual, 87.5)
			})
		})

		Convey("When the full tables are written", func() {
			So(os.WriteFile(path, full, 0o600), ShouldBeNil)

			Convey("Then the new rule sets are picked up", func() {
				deadline := time.Now().Add(5 * time.Second)
				for len(svc.RuleSets(ctx)) != 5 && time.Now().Before(deadline) {
					time.Sleep(20 * time.Millisecond)
				}
				So(len(svc.RuleSets(ctx)), ShouldEqual, 5)
			})
		})
	})
}
