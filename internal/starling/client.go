// Package starling is a minimal read-only client for the Starling Bank v2
// API, covering the calls needed to build a payments calendar.
package starling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "starlingcal/internal/log"
)

const (
	ProductionBaseURL = "https://api.starlingbank.com"
	SandboxBaseURL    = "https://api-sandbox.starlingbank.com"

	defaultTimeout = 15 * time.Second

	// Upstream expects millisecond precision in feed query timestamps.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ErrUnauthorized matches any APIError for a rejected or expired token.
var ErrUnauthorized = errors.New("starling: unauthorized")

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("starling: %s returned %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("starling: %s returned %d: %s", e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// Options configures a Client. Zero values use production defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is bound to a single access token; build one per request.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(token string, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = ProductionBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, token: token, http: hc}
}

func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out accountsResponse
	if err := c.get(ctx, "/api/v2/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *Client) Payees(ctx context.Context) ([]Payee, error) {
	var out payeesResponse
	if err := c.get(ctx, "/api/v2/payees", nil, &out); err != nil {
		return nil, err
	}
	return out.Payees, nil
}

func (c *Client) StandingOrders(ctx context.Context, account AccountUID, category CategoryUID) ([]StandingOrder, error) {
	path := fmt.Sprintf("/api/v2/payments/local/account/%s/category/%s/standing-orders",
		url.PathEscape(string(account)), url.PathEscape(string(category)))

	var out standingOrdersResponse
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out.StandingOrders, nil
}

func (c *Client) Mandates(ctx context.Context) ([]Mandate, error) {
	var out mandatesResponse
	if err := c.get(ctx, "/api/v2/direct-debit/mandates", nil, &out); err != nil {
		return nil, err
	}
	return out.Mandates, nil
}

// FeedItemsBetween lists feed items with a transaction time in [from, to].
func (c *Client) FeedItemsBetween(ctx context.Context, account AccountUID, category CategoryUID, from, to time.Time) ([]FeedItem, error) {
	path := fmt.Sprintf("/api/v2/feed/account/%s/category/%s/transactions-between",
		url.PathEscape(string(account)), url.PathEscape(string(category)))
	q := url.Values{}
	q.Set("minTransactionTimestamp", from.UTC().Format(timestampLayout))
	q.Set("maxTransactionTimestamp", to.UTC().Format(timestampLayout))

	var out feedItemsResponse
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out.FeedItems, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("starling: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "starlingcal/1.0")

	appLog.Debug("starling request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("starling: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("starling: decode %s: %w", path, err)
	}
	return nil
}

func newAPIError(resp *http.Response, path string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		apiErr.Message = er.message()
	}
	return apiErr
}
