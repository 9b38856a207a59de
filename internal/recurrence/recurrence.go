// Package recurrence turns bank-supplied repetition descriptors into
// RFC 5545 RRULE values.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"
)

// Descriptor is the repetition part of a standing order. Zero values mean
// the field was absent upstream.
type Descriptor struct {
	Frequency string
	Count     int
	Interval  int
}

// Build renders the present fields as "FREQ=..;COUNT=..;INTERVAL=..".
// Frequency is passed through verbatim. An empty descriptor yields "".
func Build(d Descriptor) string {
	parts := make([]string, 0, 3)
	if d.Frequency != "" {
		parts = append(parts, "FREQ="+d.Frequency)
	}
	if d.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(d.Count))
	}
	if d.Interval > 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(d.Interval))
	}
	return strings.Join(parts, ";")
}

// Validate checks that a non-empty rule parses as an RRULE. The empty rule
// (no recurrence) is always valid.
func Validate(rule string) error {
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("invalid recurrence rule %q: %w", rule, err)
	}
	return nil
}
