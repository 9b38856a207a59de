package model

import (
	"fmt"
	"time"
)

// Date is a calendar date without time-of-day or timezone. All-day events
// are expressed in Dates so that no later conversion can shift them.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight of d in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n calendar days, normalizing across month
// and year boundaries.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Valid reports whether d names a real calendar date (2023-02-30 does not).
func (d Date) Valid() bool {
	if d.Year <= 0 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DateOf(d.Time()) == d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Event is the canonical all-day calendar entry produced from any of the
// upstream payment records.
type Event struct {
	ProductID string
	UID       string

	Title       string
	Description string

	// Kind is the human label of the source record, e.g. "Standing Order".
	Kind string

	// Start is the payment date; End is always Start+1 day (exclusive).
	Start Date
	End   Date

	// RecurrenceRule is an RRULE value without the "RRULE:" prefix, or
	// empty for one-off events.
	RecurrenceRule string
}

// Recurring reports whether the event carries a recurrence rule.
func (e Event) Recurring() bool {
	return e.RecurrenceRule != ""
}
