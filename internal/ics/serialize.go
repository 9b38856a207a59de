package ics

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "starlingcal/internal/log"
	"starlingcal/internal/model"
	"starlingcal/internal/recurrence"
)

// ErrMalformedEvent is returned when an event cannot be represented as a
// valid all-day VEVENT.
var ErrMalformedEvent = errors.New("ics: malformed event")

// SerializeOptions controls calendar-level properties.
type SerializeOptions struct {
	// ProductID names the producing application in PRODID.
	ProductID string
	// CalendarName is written as X-WR-CALNAME when non-empty.
	CalendarName string
	// Stamp is used as DTSTAMP for every event. Zero means time.Now().
	Stamp time.Time
}

// Serialize renders events as a VCALENDAR document. Events are written in
// the given order. Any malformed event fails the whole document.
func Serialize(events []model.Event, opts SerializeOptions) (string, error) {
	for i := range events {
		if err := Check(events[i]); err != nil {
			return "", err
		}
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendarFor(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.CalendarName != "" {
		cal.SetXWRCalName(opts.CalendarName)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.UID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetAllDayStartAt(e.Start.Time())
		ve.SetAllDayEndAt(e.End.Time())
		ve.SetSummary(e.Title)
		ve.SetDescription(e.Description)
		if e.RecurrenceRule != "" {
			ve.AddProperty(ical.ComponentPropertyRrule, e.RecurrenceRule)
		}
	}

	appLog.Debug("ics serialize completed", "event_count", len(events))
	return cal.Serialize(), nil
}

// Check validates the all-day invariants of a single event.
func Check(e model.Event) error {
	if e.UID == "" {
		return fmt.Errorf("%w: empty UID", ErrMalformedEvent)
	}
	if !e.Start.Valid() {
		return fmt.Errorf("%w: %s: invalid start %s", ErrMalformedEvent, e.UID, e.Start)
	}
	if e.End != e.Start.AddDays(1) {
		return fmt.Errorf("%w: %s: end %s is not the day after start %s", ErrMalformedEvent, e.UID, e.End, e.Start)
	}
	if err := recurrence.Validate(e.RecurrenceRule); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedEvent, e.UID, err)
	}
	return nil
}
