package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/consortium/internal/domain/ruleset"
)

// CreditState is the validity of a credit rating on the announcement date.
type CreditState string

// Credit rating states. Only CreditValid enables the credit path.
const (
	CreditValid     CreditState = "valid"
	CreditExpired   CreditState = "expired"
	CreditMalformed CreditState = "malformed"
	CreditAbsent    CreditState = "absent"
)

// CreditRating is a parsed rating label such as "A0\n(2024.06.30~2025.06.29)".
type CreditRating struct {
	Grade string      `json:"grade,omitempty"`
	From  time.Time   `json:"from"`
	Until time.Time   `json:"until"`
	State CreditState `json:"state"`
}

var creditPattern = regexp.MustCompile(
	`^([A-Za-z]{1,3}[+\-0]?)\s*\(?\s*(\d{4})[./-](\d{1,2})[./-](\d{1,2})\s*~\s*(\d{4})[./-](\d{1,2})[./-](\d{1,2})\s*\)?$`)

// ParseCreditRating parses text and resolves its state against the
// announcement date and the grade table. A zero announcement date cannot
// prove the rating is in force, so the rating counts as expired.
func ParseCreditRating(text string, announced time.Time, grades ruleset.CreditTable) CreditRating {
	t := strings.TrimSpace(text)
	if t == "" {
		return CreditRating{State: CreditAbsent}
	}

	m := creditPattern.FindStringSubmatch(t)
	if m == nil {
		return CreditRating{State: CreditMalformed}
	}
	grade := ruleset.NormalizeGrade(m[1])
	from, okFrom := civilDate(m[2], m[3], m[4])
	until, okUntil := civilDate(m[5], m[6], m[7])
	if !okFrom || !okUntil || until.Before(from) {
		return CreditRating{Grade: grade, State: CreditMalformed}
	}
	if _, known := grades.Lookup(grade); !known {
		return CreditRating{Grade: grade, From: from, Until: until, State: CreditMalformed}
	}

	r := CreditRating{Grade: grade, From: from, Until: until, State: CreditExpired}
	if announced.IsZero() {
		return r
	}
	day := time.Date(announced.Year(), announced.Month(), announced.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Before(from) && !day.After(until) {
		r.State = CreditValid
	}
	return r
}

func civilDate(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject normalised overflow such as 2024.02.30
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
