package normalize

import "starlingcal/internal/starling"

// ActiveStandingOrders drops cancelled orders and one-off orders without a
// recurrence.
func ActiveStandingOrders(orders []starling.StandingOrder) []starling.StandingOrder {
	out := make([]starling.StandingOrder, 0, len(orders))
	for _, o := range orders {
		if o.Cancelled() || o.StandingOrderRecurrence == nil {
			continue
		}
		out = append(out, o)
	}
	return out
}

// SettledMandates keeps mandates that are live and have a known last
// payment to schedule from.
func SettledMandates(mandates []starling.Mandate) []starling.Mandate {
	out := make([]starling.Mandate, 0, len(mandates))
	for _, m := range mandates {
		if bool(m.Cancelled) || m.LastPayment == nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func UpcomingDirectDebits(items []starling.FeedItem) []starling.FeedItem {
	out := make([]starling.FeedItem, 0, len(items))
	for _, f := range items {
		if !f.UpcomingDirectDebit() {
			continue
		}
		out = append(out, f)
	}
	return out
}
