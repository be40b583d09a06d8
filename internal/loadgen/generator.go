package loadgen

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	compliance "github.com/okian/consortium/internal/domain/compliance"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	model "github.com/okian/consortium/internal/domain/model"
	"github.com/okian/consortium/internal/domain/ruleset"
)

const randomFloatDivisor = 1000000

// Ranges of generated company figures.
const (
	minMembers        = 2
	maxExtraMembers   = 2
	capacityMin       = 20.0
	capacityRange     = 180.0
	performanceRange  = 1500.0
	debtRatioMin      = 20.0
	debtRatioRange    = 230.0
	currentRatioMin   = 40.0
	currentRatioRange = 210.0
	estimateMin       = 1000.0
	estimateRange     = 2000.0
	noticeMarkup      = 1.1
	bidRate           = 87.745
	dutyRatio         = 30
	capacityLimitRate = 0.8
)

var regions = []string{"경기도 수원시", "서울특별시", "경기도 성남시", "인천광역시", "강원도 춘천시"} //nolint:gochecknoglobals // read-only pool

var ratings = []string{ //nolint:gochecknoglobals // read-only pool
	"",
	"A0 (2025.01.01~2025.12.31)",
	"BBB+ (2025.01.01~2025.12.31)",
	"BB0 (2025.01.01~2025.12.31)",
	"AA- (2023.01.01~2023.12.31)",
}

var announcement = model.NewDate(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) //nolint:gochecknoglobals // fixed so generated ratings stay valid

// randomFloat returns a random float64 in [0, 1) using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func ptr(v float64) *float64 { return &v }

// generateTender creates count candidates bidding for tenderID.
func generateTender(tenderID string, count int) []Candidate {
	out := make([]Candidate, count)
	for i := range out {
		out[i] = Candidate{
			TenderID:  tenderID,
			Candidate: "consortium-" + strconv.Itoa(i) + "-" + uuid.NewString()[:8],
			Request:   generateRequest(),
		}
	}
	return out
}

// generateRequest builds a well formed consortium whose shares sum to 1.
func generateRequest() evaluation.Request {
	n := minMembers + randomInt(maxExtraMembers)
	weights := make([]float64, n)
	total := 0.0
	for i := range weights {
		weights[i] = 1 + randomFloat()*3
		total += weights[i]
	}

	current := model.FieldStatus{
		model.FieldDebtRatio:     model.FreshnessCurrent,
		model.FieldCurrentRatio:  model.FreshnessCurrent,
		model.FieldPerformance5Y: model.FreshnessCurrent,
	}
	members := make([]model.ConsortiumMember, n)
	assigned := 0.0
	for i := range members {
		role := model.RoleLead
		if i > 0 {
			role = model.MemberRole(i)
		}
		members[i] = model.ConsortiumMember{
			Company: model.Company{
				Name:          "company-" + uuid.NewString()[:8],
				Region:        regions[randomInt(len(regions))],
				Capacity:      capacityMin + randomFloat()*capacityRange,
				Performance5Y: randomFloat() * performanceRange,
				DebtRatio:     ptr(debtRatioMin + randomFloat()*debtRatioRange),
				CurrentRatio:  ptr(currentRatioMin + randomFloat()*currentRatioRange),
				CreditRating:  ratings[randomInt(len(ratings))],
				Status:        current,
			},
			Role: role,
		}
		if i > 0 {
			members[i].Share = float64(int(weights[i]/total*100)) / 100
			assigned += members[i].Share
		}
	}
	members[0].Share = 1 - assigned

	estimate := estimateMin + randomFloat()*estimateRange
	return evaluation.Request{
		Members: members,
		Price: model.PriceContext{
			EstimatePrice:    estimate,
			NoticeBaseAmount: estimate * noticeMarkup,
			BidRate:          bidRate,
			AssessmentRate:   100,
		},
		AnnouncementDate: announcement,
		RuleKey:          ruleset.Key{Jurisdiction: ruleset.JurisdictionMOIS, Tier: ruleset.TierUnder3B},
		Capacity: compliance.CapacityConfig{
			Limited:     true,
			LimitAmount: estimate * capacityLimitRate,
			Method:      compliance.CapacityRatio,
		},
		Region:    "경기",
		DutyRatio: dutyRatio,
	}
}
