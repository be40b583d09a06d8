package model

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day in UTC. The zero Date means unknown.
type Date struct {
	t time.Time
}

var dateLayouts = []string{"2006-01-02", "2006.01.02", "2006/01/02", "20060102", time.RFC3339}

// ParseDate accepts ISO, dotted, slashed and compact day formats.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Time returns the day at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the day is unknown.
func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("2006-01-02")
}

// MarshalText renders the day as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText parses any accepted day format.
func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
