package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"starlingcal/internal/model"
)

// Parse reads a VCALENDAR document back into events. Only the properties
// written by Serialize are recovered.
func Parse(body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var productID string
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyProductId) {
			productID = p.Value
		}
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			return nil, perr
		}
		ev.ProductID = productID
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RecurrenceRule = p.Value
	}

	var err error
	if out.Start, err = parseDateProp(ve, ical.ComponentPropertyDtStart); err != nil {
		return out, err
	}
	if out.End, err = parseDateProp(ve, ical.ComponentPropertyDtEnd); err != nil {
		return out, err
	}
	return out, nil
}

// parseDateProp reads a DATE-valued property (YYYYMMDD).
func parseDateProp(ve *ical.VEvent, prop ical.ComponentProperty) (model.Date, error) {
	p := ve.GetProperty(prop)
	if p == nil {
		return model.Date{}, errors.New("missing " + string(prop))
	}
	v := strings.TrimSpace(p.Value)
	t, err := time.Parse("20060102", v)
	if err != nil {
		return model.Date{}, err
	}
	return model.DateOf(t), nil
}
