package core

import (
	"fmt"
	"strings"
	"time"
)

// Interval is how often a recurring transaction repeats.
type Interval string

const (
	Daily   Interval = "DAILY"
	Weekly  Interval = "WEEKLY"
	Monthly Interval = "MONTHLY"
	Yearly  Interval = "YEARLY"
)

// Intervals lists every supported interval.
func Intervals() []Interval {
	return []Interval{Daily, Weekly, Monthly, Yearly}
}

// ParseInterval accepts an interval name in any letter case.
func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.ToUpper(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	return i, nil
}

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func (i Interval) String() string { return string(i) }

// NextOccurrence returns the date one interval after from.
//
// MONTHLY and YEARLY keep the day of month; when that day does not exist in
// the target month it is clamped to the month's last day, so Jan 31 becomes
// Feb 29 (or 28) and Feb 29 becomes Feb 28 of the following year. Time of day
// and location are preserved.
func NextOccurrence(from time.Time, every Interval) (time.Time, error) {
	switch every {
	case Daily:
		return from.AddDate(0, 0, 1), nil
	case Weekly:
		return from.AddDate(0, 0, 7), nil
	case Monthly:
		return addMonthsClamped(from, 1), nil
	case Yearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, string(every))
	}
}

// NextRecurringDate derives a transaction's next occurrence. It is nil unless
// the transaction is recurring and has an interval.
func NextRecurringDate(isRecurring bool, every *Interval, date time.Time) (*time.Time, error) {
	if !isRecurring || every == nil {
		return nil, nil
	}
	next, err := NextOccurrence(date, *every)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
