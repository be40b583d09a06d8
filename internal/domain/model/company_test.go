package model_test

import (
	"encoding/json"
	"math"
	"testing"

	model "github.com/okian/consortium/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func TestFreshness(t *testing.T) {
	convey.Convey("Given freshness labels", t, func() {
		convey.Convey("When parsing canonical tokens", func() {
			convey.So(model.ParseFreshness("current"), convey.ShouldEqual, model.FreshnessCurrent)
			convey.So(model.ParseFreshness("one-year-aged"), convey.ShouldEqual, model.FreshnessOneYearAged)
			convey.So(model.ParseFreshness("more-than-one-year-aged"), convey.ShouldEqual, model.FreshnessStale)
		})

		convey.Convey("When parsing spreadsheet labels", func() {
			convey.So(model.ParseFreshness("최신"), convey.ShouldEqual, model.FreshnessCurrent)
			convey.So(model.ParseFreshness(" 1년 경과 "), convey.ShouldEqual, model.FreshnessOneYearAged)
			convey.So(model.ParseFreshness("1년 이상 경과"), convey.ShouldEqual, model.FreshnessStale)
		})

		convey.Convey("When the label is unknown", func() {
			convey.So(model.ParseFreshness("범위 초과"), convey.ShouldEqual, model.FreshnessUnspecified)
			convey.So(model.ParseFreshness(""), convey.ShouldEqual, model.FreshnessUnspecified)
		})

		convey.Convey("When a status map is missing a field", func() {
			status := model.FieldStatus{model.FieldDebtRatio: model.FreshnessCurrent}
			convey.So(status.Of(model.FieldDebtRatio).IsCurrent(), convey.ShouldBeTrue)
			convey.So(status.Of(model.FieldCurrentRatio), convey.ShouldEqual, model.FreshnessUnspecified)
			convey.So(model.FieldStatus(nil).Of(model.FieldCapacity), convey.ShouldEqual, model.FreshnessUnspecified)
		})
	})
}

func TestRole(t *testing.T) {
	convey.Convey("Given role strings", t, func() {
		convey.Convey("Then lead forms parse to the lead role", func() {
			for _, s := range []string{"lead", "LEAD", "대표사"} {
				r, err := model.ParseRole(s)
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.IsLead(), convey.ShouldBeTrue)
			}
		})

		convey.Convey("Then member forms carry their index", func() {
			r, err := model.ParseRole("member-2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(r, convey.ShouldEqual, model.MemberRole(2))

			r, err = model.ParseRole("구성사 3")
			convey.So(err, convey.ShouldBeNil)
			convey.So(r, convey.ShouldEqual, model.Role("member-3"))
		})

		convey.Convey("Then malformed roles are rejected", func() {
			for _, s := range []string{"member-0", "member-x", "구성사 ?", "partner"} {
				_, err := model.ParseRole(s)
				convey.So(err, convey.ShouldNotBeNil)
			}
		})
	})
}

func TestMemberDecoding(t *testing.T) {
	convey.Convey("Given a JSON consortium member", t, func() {
		raw := `{
			"role": "구성사 1",
			"share": 0.49,
			"company": {
				"name": "Hanbit Construction",
				"region": "경기도 수원시",
				"capacity": 5000000000,
				"performance_5y": 3000000000,
				"debt_ratio": 85.5,
				"status": {"debt_ratio": "최신", "current_ratio": "1년 경과"}
			}
		}`

		var m model.ConsortiumMember
		err := json.Unmarshal([]byte(raw), &m)

		convey.Convey("Then labels are resolved into typed values", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(m.Role, convey.ShouldEqual, model.MemberRole(1))
			convey.So(m.Company.Status.Of(model.FieldDebtRatio), convey.ShouldEqual, model.FreshnessCurrent)
			convey.So(m.Company.Status.Of(model.FieldCurrentRatio), convey.ShouldEqual, model.FreshnessOneYearAged)
			convey.So(m.Company.CurrentRatio, convey.ShouldBeNil)
		})

		convey.Convey("Then an invalid role fails decoding", func() {
			err := json.Unmarshal([]byte(`{"role":"boss","share":1}`), &m)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRatio(t *testing.T) {
	convey.Convey("Given optional ratio values", t, func() {
		_, ok := model.Ratio(nil)
		convey.So(ok, convey.ShouldBeFalse)
		_, ok = model.Ratio(ptr(math.NaN()))
		convey.So(ok, convey.ShouldBeFalse)
		_, ok = model.Ratio(ptr(-3))
		convey.So(ok, convey.ShouldBeFalse)
		v, ok := model.Ratio(ptr(120))
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(v, convey.ShouldEqual, 120)
	})
}

func TestPriceContext(t *testing.T) {
	convey.Convey("Given a price context", t, func() {
		p := model.PriceContext{EstimatePrice: 1000, NoticeBaseAmount: 1100}

		convey.Convey("Then amounts resolve by field", func() {
			convey.So(p.Amount(model.PriceEstimate), convey.ShouldEqual, 1000)
			convey.So(p.Amount(model.PriceNoticeBase), convey.ShouldEqual, 1100)
			convey.So(p.Amount(model.PriceField("other")), convey.ShouldEqual, 0)
		})

		convey.Convey("When no bid amount or rates are supplied", func() {
			convey.So(p.BidAmount(), convey.ShouldEqual, 0)
		})

		convey.Convey("When rates are supplied", func() {
			p.NoticeBaseAmount = 1_000_000
			p.BidRate = 90
			p.AssessmentRate = 100
			convey.So(p.BidAmount(), convey.ShouldAlmostEqual, 900_000, 1e-6)
		})

		convey.Convey("When a computed bid amount is supplied it wins", func() {
			p.ComputedBidAmount = 777
			p.BidRate = 90
			p.AssessmentRate = 100
			convey.So(p.BidAmount(), convey.ShouldEqual, 777)
		})
	})
}

func TestDate(t *testing.T) {
	convey.Convey("Given announcement dates in several layouts", t, func() {
		for _, s := range []string{"2025-03-10", "2025.03.10", "2025/03/10", "20250310", "2025-03-10T15:04:05+09:00"} {
			d, err := model.ParseDate(s)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.String(), convey.ShouldEqual, "2025-03-10")
		}

		convey.Convey("When the value is blank the date is unknown", func() {
			d, err := model.ParseDate(" ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.IsZero(), convey.ShouldBeTrue)
		})

		convey.Convey("When decoding JSON", func() {
			var v struct {
				Day model.Date `json:"day"`
			}
			convey.So(json.Unmarshal([]byte(`{"day":"2024.12.31"}`), &v), convey.ShouldBeNil)
			out, err := json.Marshal(v)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldEqual, `{"day":"2024-12-31"}`)
			convey.So(json.Unmarshal([]byte(`{"day":"yesterday"}`), &v), convey.ShouldNotBeNil)
		})
	})
}
