package starling

import (
	"bytes"
	"encoding/json"
	"strings"
)

type (
	AccountUID  string
	CategoryUID string
	PayeeUID    string
)

// Feed item markers used to pick upcoming direct debits.
const (
	SourceDirectDebit = "DIRECT_DEBIT"
	StatusUpcoming    = "UPCOMING"
)

type CurrencyAndAmount struct {
	Currency   string `json:"currency"`
	MinorUnits int64  `json:"minorUnits"`
}

type Account struct {
	AccountUID      AccountUID  `json:"accountUid"`
	DefaultCategory CategoryUID `json:"defaultCategory"`
}

type Payee struct {
	PayeeUID  PayeeUID `json:"payeeUid"`
	PayeeName string   `json:"payeeName"`
}

// StandingOrderRecurrence describes when a standing order repeats.
// StartDate is a plain date ("2024-01-31").
type StandingOrderRecurrence struct {
	StartDate string `json:"startDate"`
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	Count     int    `json:"count"`
}

type StandingOrder struct {
	PaymentOrderUID         string                   `json:"paymentOrderUid"`
	Amount                  CurrencyAndAmount        `json:"amount"`
	Reference               string                   `json:"reference"`
	PayeeUID                PayeeUID                 `json:"payeeUid"`
	StandingOrderRecurrence *StandingOrderRecurrence `json:"standingOrderRecurrence"`
	CancelledAt             string                   `json:"cancelledAt"`
}

// Cancelled reports whether the order carries a cancellation timestamp.
func (o StandingOrder) Cancelled() bool {
	return o.CancelledAt != ""
}

type LastPayment struct {
	LastDate   string            `json:"lastDate"`
	LastAmount CurrencyAndAmount `json:"lastAmount"`
}

type Mandate struct {
	UID            string       `json:"uid"`
	Reference      string       `json:"reference"`
	Cancelled      Flag         `json:"cancelled"`
	OriginatorName string       `json:"originatorName"`
	LastPayment    *LastPayment `json:"lastPayment"`
}

type FeedItem struct {
	FeedItemUID      string            `json:"feedItemUid"`
	Amount           CurrencyAndAmount `json:"amount"`
	TransactionTime  string            `json:"transactionTime"`
	Source           string            `json:"source"`
	Status           string            `json:"status"`
	CounterPartyName string            `json:"counterPartyName"`
	Reference        string            `json:"reference"`
}

// UpcomingDirectDebit reports whether the item is a pending direct debit.
func (f FeedItem) UpcomingDirectDebit() bool {
	return f.Source == SourceDirectDebit && f.Status == StatusUpcoming
}

// Flag decodes a field that the API sends either as a boolean or as a
// timestamp (set when true). null, false and "" are all unset.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = false
		return nil
	case bytes.Equal(data, []byte("true")):
		*f = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	*f = Flag(s != "" && !strings.EqualFold(s, "false"))
	return nil
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type payeesResponse struct {
	Payees []Payee `json:"payees"`
}

type standingOrdersResponse struct {
	StandingOrders []StandingOrder `json:"standingOrders"`
}

type mandatesResponse struct {
	Mandates []Mandate `json:"mandates"`
}

type feedItemsResponse struct {
	FeedItems []FeedItem `json:"feedItems"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Errors           []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e errorResponse) message() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Error != "":
		return e.Error
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	}
	return ""
}
