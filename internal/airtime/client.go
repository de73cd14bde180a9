// Package airtime is the client for the downstream reward provider: a
// basic-auth HTTP API that disburses airtime and reports the reseller
// account balance.
package airtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/apperr"
)

type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, key, secret string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, key: key, secret: secret, http: httpClient, log: log}
}

// Receipt is the provider's acknowledgement for a disbursement.
type Receipt struct {
	StatusCode  int    `json:"status_code"`
	Description string `json:"description"`
	RequestID   string `json:"request_id"`
}

// Dispatch sends airtime to a canonical phone number. Any non-2xx reply is
// a DispatchError; the caller decides what to do with it (log and audit,
// never touch the payment row).
func (c *Client) Dispatch(ctx context.Context, phone string, amount decimal.Decimal) (Receipt, error) {
	payload := map[string]string{
		"phone_number": phone,
		"amount":       amount.String(),
	}
	raw, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/airtime", bytes.NewReader(raw))
	if err != nil {
		return Receipt{}, &apperr.DispatchError{Recipient: phone, Err: err}
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, &apperr.DispatchError{Recipient: phone, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, &apperr.DispatchError{
			Recipient: phone,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var rec Receipt
	if err := json.Unmarshal(body, &rec); err != nil {
		return Receipt{}, &apperr.DispatchError{Recipient: phone, Err: fmt.Errorf("bad receipt body: %w", err)}
	}
	return rec, nil
}

// AccountDetails is the provider-side balance snapshot shown on the
// dashboard. Display only.
type AccountDetails struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Known    bool            `json:"known"`
}

// accountEndpoints is the documented fallback chain: the current endpoint
// first, then legacy shapes still served for older integrations.
var accountEndpoints = []string{
	"/api/v2/account-details",
	"/api/v2/account_balance",
	"/api/v1/account-details",
}

// AccountDetailsWithFallback tries each known endpoint shape in order and
// returns a zero/unknown sentinel when all fail. It never returns an
// error: this path feeds dashboard rendering and must not abort it.
func (c *Client) AccountDetailsWithFallback(ctx context.Context) AccountDetails {
	for _, ep := range accountEndpoints {
		det, err := c.fetchAccount(ctx, ep)
		if err == nil {
			det.Known = true
			return det
		}
		c.log.Debug("airtime balance endpoint failed", "endpoint", ep, "err", err)
	}
	c.log.Warn("airtime balance unavailable, returning unknown sentinel")
	return AccountDetails{Balance: decimal.Zero, Currency: "KES", Known: false}
}

func (c *Client) fetchAccount(ctx context.Context, endpoint string) (AccountDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return AccountDetails{}, err
	}
	req.SetBasicAuth(c.key, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return AccountDetails{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return AccountDetails{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	// both current and legacy shapes carry the balance under one of these
	var body struct {
		Balance        json.Number `json:"balance"`
		AccountBalance json.Number `json:"account_balance"`
		Currency       string      `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AccountDetails{}, err
	}
	num := body.Balance
	if num == "" {
		num = body.AccountBalance
	}
	amount, err := decimal.NewFromString(num.String())
	if err != nil {
		return AccountDetails{}, fmt.Errorf("bad balance value %q", num)
	}
	cur := body.Currency
	if cur == "" {
		cur = "KES"
	}
	return AccountDetails{Balance: amount, Currency: cur}, nil
}
