// Package feed fetches a customer's payment obligations from the bank and
// assembles them into calendar events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"starlingcal/internal/ics"
	appLog "starlingcal/internal/log"
	"starlingcal/internal/model"
	"starlingcal/internal/normalize"
	"starlingcal/internal/schedule"
	"starlingcal/internal/starling"
)

// DefaultProductID identifies this application in generated calendars.
const DefaultProductID = "StarlingCalendar"

var ErrNoAccount = errors.New("feed: no accounts returned")

// Bank is the subset of the banking API the orchestrator consumes.
// *starling.Client satisfies it.
type Bank interface {
	Accounts(ctx context.Context) ([]starling.Account, error)
	Payees(ctx context.Context) ([]starling.Payee, error)
	StandingOrders(ctx context.Context, account starling.AccountUID, category starling.CategoryUID) ([]starling.StandingOrder, error)
	Mandates(ctx context.Context) ([]starling.Mandate, error)
	FeedItemsBetween(ctx context.Context, account starling.AccountUID, category starling.CategoryUID, from, to time.Time) ([]starling.FeedItem, error)
}

// Orchestrator is stateless between calls; one value can serve every
// request.
type Orchestrator struct {
	ProductID    string
	CalendarName string
	Resolver     schedule.Resolver

	// Now supplies the current instant. nil means time.Now.
	Now func() time.Time
}

func (o Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Orchestrator) productID() string {
	if o.ProductID == "" {
		return DefaultProductID
	}
	return o.ProductID
}

type snapshot struct {
	payees         []starling.Payee
	standingOrders []starling.StandingOrder
	mandates       []starling.Mandate
	feedItems      []starling.FeedItem
}

// Events runs one round of upstream calls and returns the merged event
// list: settled direct debits, then upcoming direct debits, then standing
// orders. Any upstream failure fails the whole call.
func (o Orchestrator) Events(ctx context.Context, bank Bank) ([]model.Event, error) {
	return o.events(ctx, bank, o.now())
}

func (o Orchestrator) events(ctx context.Context, bank Bank, now time.Time) ([]model.Event, error) {
	accounts, err := bank.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccount
	}
	// Only the first account is used; multi-account customers see the
	// obligations of their primary account.
	account := accounts[0]

	snap, err := o.fetch(ctx, bank, account, now)
	if err != nil {
		return nil, err
	}

	payees := NewPayeeDirectory(snap.payees)
	n := normalize.Normalizer{ProductID: o.productID(), Resolver: o.Resolver}

	records := make([]normalize.Record, 0, len(snap.mandates)+len(snap.feedItems)+len(snap.standingOrders))
	for _, m := range normalize.SettledMandates(snap.mandates) {
		records = append(records, normalize.SettledMandate{Mandate: m})
	}
	for _, f := range normalize.UpcomingDirectDebits(snap.feedItems) {
		records = append(records, normalize.UpcomingFeedItem{Item: f})
	}
	for _, so := range normalize.ActiveStandingOrders(snap.standingOrders) {
		records = append(records, normalize.StandingOrder{Order: so, PayeeName: payees.Name(so.PayeeUID)})
	}

	events := make([]model.Event, 0, len(records))
	for _, r := range records {
		ev, err := n.Normalize(r)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	events = Dedupe(events)

	appLog.Info("feed events built",
		"account", account.AccountUID,
		"mandates", len(snap.mandates),
		"feed_items", len(snap.feedItems),
		"standing_orders", len(snap.standingOrders),
		"events", len(events),
	)
	return events, nil
}

// Calendar builds the events and serializes them into an iCalendar document.
// The clock is read once, so DTSTAMP matches the start of the query window.
func (o Orchestrator) Calendar(ctx context.Context, bank Bank) (string, error) {
	now := o.now()
	events, err := o.events(ctx, bank, now)
	if err != nil {
		return "", err
	}
	return ics.Serialize(events, ics.SerializeOptions{
		ProductID:    o.productID(),
		CalendarName: o.CalendarName,
		Stamp:        now,
	})
}

// fetch issues the four account-dependent calls concurrently. The first
// failure cancels the rest.
func (o Orchestrator) fetch(ctx context.Context, bank Bank, account starling.Account, now time.Time) (snapshot, error) {
	var snap snapshot
	from, to := o.Resolver.Window(now)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		payees, err := bank.Payees(gctx)
		if err != nil {
			return fmt.Errorf("feed: fetch payees: %w", err)
		}
		snap.payees = payees
		return nil
	})
	g.Go(func() error {
		orders, err := bank.StandingOrders(gctx, account.AccountUID, account.DefaultCategory)
		if err != nil {
			return fmt.Errorf("feed: fetch standing orders: %w", err)
		}
		snap.standingOrders = orders
		return nil
	})
	g.Go(func() error {
		mandates, err := bank.Mandates(gctx)
		if err != nil {
			return fmt.Errorf("feed: fetch mandates: %w", err)
		}
		snap.mandates = mandates
		return nil
	})
	g.Go(func() error {
		items, err := bank.FeedItemsBetween(gctx, account.AccountUID, account.DefaultCategory, from, to)
		if err != nil {
			return fmt.Errorf("feed: fetch feed items: %w", err)
		}
		snap.feedItems = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// Dedupe drops events whose UID was already seen, keeping the first.
func Dedupe(events []model.Event) []model.Event {
	seen := make(map[string]struct{}, len(events))
	out := events[:0]
	for _, e := range events {
		if _, ok := seen[e.UID]; ok {
			appLog.Warn("duplicate event uid dropped", "uid", e.UID, "kind", e.Kind)
			continue
		}
		seen[e.UID] = struct{}{}
		out = append(out, e)
	}
	return out
}
