package daraja

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

// Config carries the gateway-side credentials and identifiers. ShortCode is
// the STK (Lipa na M-Pesa) business shortcode; StoreNumber is the till/store
// used for pull queries, C2B registration and reversals.
type Config struct {
	BaseURL            string
	ShortCode          string
	StoreNumber        string
	TillNumber         string
	Passkey            string
	InitiatorName      string
	SecurityCredential string
	CallbackBaseURL    string
	AccountReference   string
	TransactionDesc    string
}

type Client struct {
	cfg    Config
	tokens *TokenSource
	http   *http.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewClient(cfg Config, tokens *TokenSource, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, tokens: tokens, http: httpClient, log: log, now: time.Now}
}

// STKAccepted is the gateway's immediate acceptance envelope for a push
// request. CheckoutRequestID is the correlation key for everything after.
type STKAccepted struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
	CustomerMessage   string `json:"CustomerMessage"`
}

// STKPush submits a payment request for the given canonical phone number.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal) (STKAccepted, error) {
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerBuyGoodsOnline",
		"Amount":            amount.String(),
		"PartyA":            phone,
		"PartyB":            c.cfg.TillNumber,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.CallbackBaseURL + "/callback/stk",
		"AccountReference":  c.cfg.AccountReference,
		"TransactionDesc":   c.cfg.TransactionDesc,
	}

	var out STKAccepted
	if err := c.doJSON(ctx, "stk push", "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return STKAccepted{}, err
	}
	if out.ResponseCode != "0" {
		return STKAccepted{}, &apperr.GatewayError{Op: "stk push", Code: out.ResponseCode, Desc: out.ResponseDesc}
	}
	return out, nil
}

// STKQueryResult is the status-query outcome for a checkout request.
// An empty ResultCode means the gateway has no terminal result yet.
type STKQueryResult struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// STKQuery asks the gateway for the outcome of an earlier push. The
// password/timestamp pair is recomputed per query; the gateway only
// requires that they match each other.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (STKQueryResult, error) {
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var out STKQueryResult
	if err := c.doJSON(ctx, "stk query", "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		return STKQueryResult{}, err
	}
	return out, nil
}

// PulledTransaction is one raw record from the bulk pull endpoint.
type PulledTransaction struct {
	TransactionID string      `json:"transactionId"`
	TrxDate       string      `json:"trxDate"`
	MSISDN        string      `json:"msisdn"`
	Sender        string      `json:"sender"`
	Amount        json.Number `json:"amount"`
}

const pullDateLayout = "2006-01-02 15:04:05"

// PullTransactions retrieves the gateway's own transaction history for a
// time window. Callers are responsible for keeping the window under the
// gateway's 48h lookback cap.
func (c *Client) PullTransactions(ctx context.Context, start, end time.Time) ([]PulledTransaction, error) {
	payload := map[string]any{
		"ShortCode":   c.cfg.StoreNumber,
		"StartDate":   start.Format(pullDateLayout),
		"EndDate":     end.Format(pullDateLayout),
		"OffSetValue": "0",
	}
	// Response is a list of lists; the first element holds the records.
	var out struct {
		ResponseRefID   string                `json:"ResponseRefID"`
		ResponseCode    string                `json:"ResponseCode"`
		ResponseMessage string                `json:"ResponseMessage"`
		Response        [][]PulledTransaction `json:"Response"`
	}
	if err := c.doJSON(ctx, "pull transactions", "/pulltransactions/v1/query", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Response) == 0 {
		return nil, nil
	}
	return out.Response[0], nil
}

// RegisterPullURL nominates this service's callback for the pull API.
// One-time setup per store number.
func (c *Client) RegisterPullURL(ctx context.Context, nominatedNumber string) error {
	payload := map[string]any{
		"ShortCode":       c.cfg.StoreNumber,
		"RequestType":     "Pull",
		"NominatedNumber": nominatedNumber,
		"CallBackURL":     c.cfg.CallbackBaseURL + "/callback/pull",
	}
	var out map[string]any
	return c.doJSON(ctx, "register pull", "/pulltransactions/v1/register", payload, &out)
}

// RegisterC2BURL points the gateway's C2B confirmation push at this service.
func (c *Client) RegisterC2BURL(ctx context.Context) error {
	payload := map[string]any{
		"ShortCode": c.cfg.StoreNumber,
		// the gateway completes the transaction even if our server is slow
		"ResponseType":    "Completed",
		"ConfirmationURL": c.cfg.CallbackBaseURL + "/callback/c2b",
		"ValidationURL":   c.cfg.CallbackBaseURL + "/callback/c2b",
	}
	var out map[string]any
	return c.doJSON(ctx, "register c2b", "/mpesa/c2b/v1/registerurl", payload, &out)
}

// CommandAck is the synchronous acceptance for async commands (status
// query, balance query, reversal); the real result arrives on a callback.
type CommandAck struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// QueryTransactionStatus starts an async status lookup for a receipt.
func (c *Client) QueryTransactionStatus(ctx context.Context, transactionID string) (CommandAck, error) {
	payload := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      transactionID,
		"PartyA":             c.cfg.StoreNumber,
		"IdentifierType":     "4",
		"ResultURL":          c.cfg.CallbackBaseURL + "/callback/status",
		"QueueTimeOutURL":    c.cfg.CallbackBaseURL + "/callback/status",
		"Remarks":            "Transaction status lookup",
		"Occasion":           "SupportQuery",
	}
	var out CommandAck
	if err := c.doJSON(ctx, "status query", "/mpesa/transactionstatus/v1/query", payload, &out); err != nil {
		return CommandAck{}, err
	}
	return out, nil
}

// RequestAccountBalance starts an async balance query for the store.
func (c *Client) RequestAccountBalance(ctx context.Context) (CommandAck, error) {
	payload := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "AccountBalance",
		"PartyA":             c.cfg.ShortCode,
		"IdentifierType":     "4",
		"Remarks":            "Routine balance check",
		"ResultURL":          c.cfg.CallbackBaseURL + "/callback/balance",
		"QueueTimeOutURL":    c.cfg.CallbackBaseURL + "/callback/balance",
	}
	var out CommandAck
	if err := c.doJSON(ctx, "balance query", "/mpesa/accountbalance/v1/query", payload, &out); err != nil {
		return CommandAck{}, err
	}
	return out, nil
}

// Reverse starts an async reversal of a settled transaction. The ledger is
// only updated when the reversal result callback confirms.
func (c *Client) Reverse(ctx context.Context, transactionID string, amount decimal.Decimal) (CommandAck, error) {
	payload := map[string]any{
		"Initiator":              c.cfg.InitiatorName,
		"SecurityCredential":     c.cfg.SecurityCredential,
		"CommandID":              "TransactionReversal",
		"TransactionID":          transactionID,
		"Amount":                 amount.String(),
		"ReceiverParty":          c.cfg.StoreNumber,
		"RecieverIdentifierType": "11",
		"ResultURL":              c.cfg.CallbackBaseURL + "/callback/reversal",
		"QueueTimeOutURL":        c.cfg.CallbackBaseURL + "/callback/reversal",
		"Remarks":                fmt.Sprintf("Reversing transaction %s", transactionID),
		"Occasion":               "CustomerRefund",
	}
	var out CommandAck
	if err := c.doJSON(ctx, "reversal", "/mpesa/reversal/v1/request", payload, &out); err != nil {
		return CommandAck{}, err
	}
	return out, nil
}

// doJSON posts payload to path with a bearer token and decodes the reply.
// On a 401 the cached token is invalidated and the call retried exactly
// once with a fresh token.
func (c *Client) doJSON(ctx context.Context, op, path string, payload, out any) error {
	status, body, err := c.send(ctx, op, path, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		status, body, err = c.send(ctx, op, path, payload)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return &apperr.AuthError{Op: op, Err: fmt.Errorf("401 after token refresh")}
		}
	}
	if status < 200 || status >= 300 {
		return &apperr.GatewayError{Op: op, Status: status, Desc: gatewayErrorDesc(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apperr.GatewayError{Op: op, Status: status, Desc: "unparseable response body"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, path string, payload any) (int, []byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &apperr.TransientNetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, &apperr.TransientNetworkError{Op: op, Err: err}
	}
	return resp.StatusCode, body, nil
}

func gatewayErrorDesc(body []byte) string {
	var e struct {
		ErrorMessage    string `json:"errorMessage"`
		ResponseMessage string `json:"ResponseMessage"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.ErrorMessage != "" {
			return e.ErrorMessage
		}
		if e.ResponseMessage != "" {
			return e.ResponseMessage
		}
	}
	return string(body)
}
