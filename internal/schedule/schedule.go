// Package schedule resolves the feed query window and turns upstream
// dates and timestamps into all-day calendar spans in a display timezone.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "starlingcal/internal/log"
	"starlingcal/internal/model"
)

// DefaultWindowDays is how far ahead upcoming feed items are queried.
const DefaultWindowDays = 10

const dateLayout = "2006-01-02"

var ErrEmptyValue = errors.New("schedule: empty date value")

// Resolver holds the display timezone and window length. The zero value
// uses time.Local and DefaultWindowDays.
type Resolver struct {
	// Location is the timezone calendar dates are taken in. nil means
	// time.Local.
	Location *time.Location

	// WindowDays is the length of the feed query window. Values <= 0 use
	// DefaultWindowDays.
	WindowDays int
}

func (r Resolver) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r Resolver) windowDays() int {
	if r.WindowDays <= 0 {
		return DefaultWindowDays
	}
	return r.WindowDays
}

// Window returns the feed-item query window [now, now+WindowDays days] in UTC.
func (r Resolver) Window(now time.Time) (from, to time.Time) {
	from = now.UTC()
	to = from.AddDate(0, 0, r.windowDays())
	return from, to
}

// DayOf returns the calendar date of an upstream value. Date-only values
// ("2024-01-31") are taken as-is. Timestamps are converted into the display
// timezone before time-of-day is dropped.
func (r Resolver) DayOf(value string) (model.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return model.Date{}, ErrEmptyValue
	}

	if len(value) == len(dateLayout) {
		d, err := time.Parse(dateLayout, value)
		if err != nil {
			return model.Date{}, fmt.Errorf("schedule: parse date %q: %w", value, err)
		}
		return model.DateOf(d), nil
	}

	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return model.Date{}, fmt.Errorf("schedule: parse timestamp %q: %w", value, err)
	}
	return r.DayOfTime(ts), nil
}

// DayOfTime returns the calendar date of t in the display timezone.
func (r Resolver) DayOfTime(t time.Time) model.Date {
	return model.DateOf(t.In(r.location()))
}

// Span returns the all-day span for an upstream value: start is its
// calendar date and end is the following day.
func (r Resolver) Span(value string) (start, end model.Date, err error) {
	start, err = r.DayOf(value)
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	return start, start.AddDays(1), nil
}

// LoadLocation resolves an IANA timezone name. Empty or unknown names fall
// back to time.Local; unknown names are logged.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
