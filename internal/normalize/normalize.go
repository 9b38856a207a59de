// Package normalize maps the three upstream payment record shapes onto a
// single all-day calendar event.
package normalize

import (
	"errors"
	"fmt"

	"starlingcal/internal/model"
	"starlingcal/internal/money"
	"starlingcal/internal/recurrence"
	"starlingcal/internal/schedule"
	"starlingcal/internal/starling"
)

const (
	LabelStandingOrder       = "Standing Order"
	LabelSettledDirectDebit  = "Settled Direct Debit"
	LabelUpcomingDirectDebit = "Upcoming Direct Debit"
)

var (
	ErrUnknownRecord = errors.New("normalize: unknown record variant")
	ErrMissingUID    = errors.New("normalize: record has no identifier")
)

// Record is one of StandingOrder, SettledMandate or UpcomingFeedItem.
type Record interface {
	record()
}

// StandingOrder carries an active order and the resolved payee name, which
// may be empty when the payee is unknown.
type StandingOrder struct {
	Order     starling.StandingOrder
	PayeeName string
}

type SettledMandate struct {
	Mandate starling.Mandate
}

type UpcomingFeedItem struct {
	Item starling.FeedItem
}

func (StandingOrder) record()    {}
func (SettledMandate) record()   {}
func (UpcomingFeedItem) record() {}

// Normalizer builds events stamped with ProductID, taking dates in the
// Resolver's display timezone.
type Normalizer struct {
	ProductID string
	Resolver  schedule.Resolver
}

func (n Normalizer) Normalize(r Record) (model.Event, error) {
	switch v := r.(type) {
	case StandingOrder:
		return n.standingOrder(v)
	case SettledMandate:
		return n.settledMandate(v)
	case UpcomingFeedItem:
		return n.upcomingFeedItem(v)
	default:
		return model.Event{}, fmt.Errorf("%w: %T", ErrUnknownRecord, r)
	}
}

func (n Normalizer) standingOrder(v StandingOrder) (model.Event, error) {
	o := v.Order
	if o.StandingOrderRecurrence == nil {
		return model.Event{}, fmt.Errorf("normalize: standing order %s has no recurrence", o.PaymentOrderUID)
	}
	rec := o.StandingOrderRecurrence

	return n.build(o.PaymentOrderUID, v.PayeeName, o.Amount, o.Reference, LabelStandingOrder,
		rec.StartDate, recurrence.Build(recurrence.Descriptor{
			Frequency: rec.Frequency,
			Count:     rec.Count,
			Interval:  rec.Interval,
		}))
}

func (n Normalizer) settledMandate(v SettledMandate) (model.Event, error) {
	m := v.Mandate
	if m.LastPayment == nil {
		return model.Event{}, fmt.Errorf("normalize: mandate %s has no last payment", m.UID)
	}

	return n.build(m.UID, m.OriginatorName, m.LastPayment.LastAmount, m.Reference, LabelSettledDirectDebit,
		m.LastPayment.LastDate, "")
}

func (n Normalizer) upcomingFeedItem(v UpcomingFeedItem) (model.Event, error) {
	f := v.Item
	return n.build(f.FeedItemUID, f.CounterPartyName, f.Amount, f.Reference, LabelUpcomingDirectDebit,
		f.TransactionTime, "")
}

func (n Normalizer) build(uid, name string, amount starling.CurrencyAndAmount, reference, label, when, rule string) (model.Event, error) {
	if uid == "" {
		return model.Event{}, fmt.Errorf("%w (%s)", ErrMissingUID, label)
	}

	start, end, err := n.Resolver.Span(when)
	if err != nil {
		return model.Event{}, fmt.Errorf("normalize: %s %s: %w", label, uid, err)
	}

	return model.Event{
		ProductID:      n.ProductID,
		UID:            uid,
		Title:          Title(name, amount),
		Description:    Description(reference, label),
		Kind:           label,
		Start:          start,
		End:            end,
		RecurrenceRule: rule,
	}, nil
}

// Title is "<name> (<symbol><amount>)".
func Title(name string, amount starling.CurrencyAndAmount) string {
	return name + " " + money.FormatAmount(money.Amount{
		Currency:   amount.Currency,
		MinorUnits: amount.MinorUnits,
	})
}

// Description is "Ref: <reference> (<label>)".
func Description(reference, label string) string {
	return "Ref: " + reference + " (" + label + ")"
}
