package domain

import (
	"fmt"
	"time"
)

// DateLayout is the on-disk and on-wire layout of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, formatted as YYYY-MM-DD.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date. The zero Date yields the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Yesterday returns the day before d.
func (d Date) Yesterday() Date {
	return d.AddDays(-1)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	// YYYY-MM-DD sorts lexically.
	return d < other
}

func (d Date) String() string {
	return string(d)
}
