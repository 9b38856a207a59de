package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starlingcal/internal/ics"
	"starlingcal/internal/model"
	"starlingcal/internal/normalize"
	"starlingcal/internal/schedule"
	"starlingcal/internal/starling"
)

var fixedNow = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

type fakeBank struct {
	mu sync.Mutex

	accounts       []starling.Account
	payees         []starling.Payee
	standingOrders []starling.StandingOrder
	mandates       []starling.Mandate
	feedItems      []starling.FeedItem

	failOn string
	err    error

	calls      []string
	from, to   time.Time
	gotAccount starling.AccountUID
	gotCat     starling.CategoryUID
}

func (b *fakeBank) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if b.failOn == call {
		return b.err
	}
	return nil
}

func (b *fakeBank) Accounts(context.Context) ([]starling.Account, error) {
	if err := b.record("accounts"); err != nil {
		return nil, err
	}
	return b.accounts, nil
}

func (b *fakeBank) Payees(context.Context) ([]starling.Payee, error) {
	if err := b.record("payees"); err != nil {
		return nil, err
	}
	return b.payees, nil
}

func (b *fakeBank) StandingOrders(_ context.Context, a starling.AccountUID, c starling.CategoryUID) ([]starling.StandingOrder, error) {
	if err := b.record("standing-orders"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.gotAccount, b.gotCat = a, c
	b.mu.Unlock()
	return b.standingOrders, nil
}

func (b *fakeBank) Mandates(context.Context) ([]starling.Mandate, error) {
	if err := b.record("mandates"); err != nil {
		return nil, err
	}
	return b.mandates, nil
}

func (b *fakeBank) FeedItemsBetween(_ context.Context, _ starling.AccountUID, _ starling.CategoryUID, from, to time.Time) ([]starling.FeedItem, error) {
	if err := b.record("feed-items"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.from, b.to = from, to
	b.mu.Unlock()
	return b.feedItems, nil
}

func gbp(minor int64) starling.CurrencyAndAmount {
	return starling.CurrencyAndAmount{Currency: "GBP", MinorUnits: minor}
}

func scenarioBank() *fakeBank {
	return &fakeBank{
		accounts: []starling.Account{
			{AccountUID: "acc-1", DefaultCategory: "cat-1"},
			{AccountUID: "acc-2", DefaultCategory: "cat-2"},
		},
		payees: []starling.Payee{{PayeeUID: "payee-1", PayeeName: "Landlord"}},
		standingOrders: []starling.StandingOrder{{
			PaymentOrderUID: "po-1",
			Amount:          gbp(120000),
			Reference:       "Rent",
			PayeeUID:        "payee-1",
			StandingOrderRecurrence: &starling.StandingOrderRecurrence{
				StartDate: "2024-01-31",
				Frequency: "MONTHLY",
			},
		}},
		mandates: []starling.Mandate{{
			UID:            "m-1",
			OriginatorName: "Old Gym",
			Cancelled:      true,
			LastPayment:    &starling.LastPayment{LastDate: "2024-01-15", LastAmount: gbp(2500)},
		}},
		feedItems: []starling.FeedItem{{
			FeedItemUID:      "fi-1",
			CounterPartyName: "Energy Co",
			Amount:           gbp(4599),
			Reference:        "ACC123",
			TransactionTime:  "2024-03-05T10:00:00.000Z",
			Source:           starling.SourceDirectDebit,
			Status:           starling.StatusUpcoming,
		}},
	}
}

func testOrchestrator() Orchestrator {
	return Orchestrator{
		Resolver: schedule.Resolver{Location: time.UTC},
		Now:      func() time.Time { return fixedNow },
	}
}

func TestEndToEndScenario(t *testing.T) {
	bank := scenarioBank()

	body, err := testOrchestrator().Calendar(context.Background(), bank)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Equal(t, 2, strings.Count(body, "END:VEVENT"))
	assert.NotContains(t, body, "m-1")

	parsed, err := ics.Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "fi-1", parsed[0].UID)
	assert.Equal(t, "po-1", parsed[1].UID)
	assert.Equal(t, "FREQ=MONTHLY", parsed[1].RecurrenceRule)
	assert.Equal(t, "Landlord (£1200.00)", parsed[1].Title)
}

func TestEventsUsesFirstAccountAndWindow(t *testing.T) {
	bank := scenarioBank()

	_, err := testOrchestrator().Events(context.Background(), bank)
	require.NoError(t, err)

	assert.Equal(t, starling.AccountUID("acc-1"), bank.gotAccount)
	assert.Equal(t, starling.CategoryUID("cat-1"), bank.gotCat)
	assert.True(t, bank.from.Equal(fixedNow))
	assert.True(t, bank.to.Equal(fixedNow.AddDate(0, 0, schedule.DefaultWindowDays)))
	assert.Equal(t, "accounts", bank.calls[0])
	assert.ElementsMatch(t, []string{"accounts", "payees", "standing-orders", "mandates", "feed-items"}, bank.calls)
}

func TestEventsMergeOrder(t *testing.T) {
	bank := scenarioBank()
	bank.mandates = append(bank.mandates, starling.Mandate{
		UID:            "m-2",
		OriginatorName: "Water Co",
		LastPayment:    &starling.LastPayment{LastDate: "2024-02-20", LastAmount: gbp(1800)},
	})

	events, err := testOrchestrator().Events(context.Background(), bank)
	require.NoError(t, err)

	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		normalize.LabelSettledDirectDebit,
		normalize.LabelUpcomingDirectDebit,
		normalize.LabelStandingOrder,
	}, kinds)
}

func TestEventsFiltering(t *testing.T) {
	bank := scenarioBank()
	rec := &starling.StandingOrderRecurrence{StartDate: "2024-02-01", Frequency: "WEEKLY"}
	bank.standingOrders = append(bank.standingOrders,
		starling.StandingOrder{PaymentOrderUID: "po-cancelled", StandingOrderRecurrence: rec, CancelledAt: "2024-02-10T00:00:00.000Z"},
		starling.StandingOrder{PaymentOrderUID: "po-oneoff"},
	)
	bank.mandates = append(bank.mandates, starling.Mandate{UID: "m-unpaid", OriginatorName: "New Co"})
	bank.feedItems = append(bank.feedItems,
		starling.FeedItem{FeedItemUID: "fi-settled", Source: starling.SourceDirectDebit, Status: "SETTLED", TransactionTime: "2024-03-02T00:00:00Z"},
		starling.FeedItem{FeedItemUID: "fi-card", Source: "MASTER_CARD", Status: starling.StatusUpcoming, TransactionTime: "2024-03-02T00:00:00Z"},
	)

	events, err := testOrchestrator().Events(context.Background(), bank)
	require.NoError(t, err)

	uids := make([]string, 0, len(events))
	for _, e := range events {
		uids = append(uids, e.UID)
		assert.Equal(t, e.Start.AddDays(1), e.End, e.UID)
		assert.NotEmpty(t, e.UID)
	}
	assert.Equal(t, []string{"fi-1", "po-1"}, uids)
}

func TestEventsUnknownPayeeIsBlank(t *testing.T) {
	bank := scenarioBank()
	bank.payees = nil

	events, err := testOrchestrator().Events(context.Background(), bank)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, " (£1200.00)", events[1].Title)
}

func TestEventsIdempotent(t *testing.T) {
	o := testOrchestrator()

	first, err := o.Events(context.Background(), scenarioBank())
	require.NoError(t, err)
	second, err := o.Events(context.Background(), scenarioBank())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := o.Calendar(context.Background(), scenarioBank())
	require.NoError(t, err)
	b, err := o.Calendar(context.Background(), scenarioBank())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCalendarReadsClockOnce(t *testing.T) {
	bank := scenarioBank()
	o := testOrchestrator()

	var reads int
	o.Now = func() time.Time {
		reads++
		return fixedNow.Add(time.Duration(reads) * time.Hour)
	}

	body, err := o.Calendar(context.Background(), bank)
	require.NoError(t, err)

	assert.Equal(t, 1, reads)
	stamp := fixedNow.Add(time.Hour)
	assert.True(t, bank.from.Equal(stamp))
	assert.Contains(t, body, "DTSTAMP:"+stamp.UTC().Format("20060102T150405Z"))
}

func TestEventsUpstreamFailures(t *testing.T) {
	unauthorized := &starling.APIError{StatusCode: 401, Path: "/api/v2/x"}

	for _, call := range []string{"accounts", "payees", "standing-orders", "mandates", "feed-items"} {
		t.Run(call, func(t *testing.T) {
			bank := scenarioBank()
			bank.failOn = call
			bank.err = unauthorized

			events, err := testOrchestrator().Events(context.Background(), bank)
			assert.Nil(t, events)
			assert.ErrorIs(t, err, starling.ErrUnauthorized)
		})
	}
}

func TestEventsNoAccount(t *testing.T) {
	bank := scenarioBank()
	bank.accounts = nil

	_, err := testOrchestrator().Events(context.Background(), bank)
	assert.ErrorIs(t, err, ErrNoAccount)
	assert.Equal(t, []string{"accounts"}, bank.calls)
}

func TestEventsMalformedTimestampFails(t *testing.T) {
	bank := scenarioBank()
	bank.feedItems[0].TransactionTime = "tomorrow"

	_, err := testOrchestrator().Events(context.Background(), bank)
	assert.Error(t, err)
}

func TestCalendarSerializationFailure(t *testing.T) {
	bank := scenarioBank()
	bank.standingOrders[0].StandingOrderRecurrence.Frequency = "NEVER"

	_, err := testOrchestrator().Calendar(context.Background(), bank)
	assert.ErrorIs(t, err, ics.ErrMalformedEvent)
}

func TestDedupeKeepsFirst(t *testing.T) {
	d := model.Date{Year: 2024, Month: time.March, Day: 1}
	events := []model.Event{
		{UID: "a", Title: "first", Start: d, End: d.AddDays(1)},
		{UID: "b", Start: d, End: d.AddDays(1)},
		{UID: "a", Title: "second", Start: d, End: d.AddDays(1)},
	}

	got := Dedupe(events)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "b", got[1].UID)
}

func TestPayeeDirectory(t *testing.T) {
	dir := NewPayeeDirectory([]starling.Payee{{PayeeUID: "p1", PayeeName: "Alice"}})

	assert.Equal(t, "Alice", dir.Name("p1"))
	assert.Equal(t, "", dir.Name("missing"))
	assert.Equal(t, "", PayeeDirectory(nil).Name("p1"))
}

func TestEventsTransportError(t *testing.T) {
	bank := scenarioBank()
	bank.failOn = "mandates"
	bank.err = errors.New("connection reset")

	_, err := testOrchestrator().Events(context.Background(), bank)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NotErrorIs(t, err, starling.ErrUnauthorized)
}
