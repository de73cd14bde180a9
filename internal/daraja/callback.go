package daraja

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/models"
)

// Callback payload shapes differ per command: STK settlements nest under
// Body.stkCallback with positional-free metadata items, async command
// results nest under Result with a keyed parameter list, and C2B
// confirmations are flat. Each variant gets its own parser; unrecognized
// shapes are rejected instead of silently defaulting.

type resultParam struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

type resultEnvelope struct {
	Result *struct {
		ResultType               int         `json:"ResultType"`
		ResultCode               json.Number `json:"ResultCode"`
		ResultDesc               string      `json:"ResultDesc"`
		OriginatorConversationID string      `json:"OriginatorConversationID"`
		ConversationID           string      `json:"ConversationID"`
		TransactionID            string      `json:"TransactionID"`
		ResultParameters         struct {
			ResultParameter []resultParam `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

func decodeResult(raw []byte) (*resultEnvelope, error) {
	var env resultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("result callback: %w", err)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("result callback: missing Result object")
	}
	return &env, nil
}

// paramString finds a result parameter by key name. Lookup is by name, not
// position; the key set and cardinality vary by callback type.
func paramString(params []resultParam, key string) (string, bool) {
	for _, p := range params {
		if p.Key == key {
			switch v := p.Value.(type) {
			case string:
				return v, true
			case float64:
				return decimal.NewFromFloat(v).String(), true
			case json.Number:
				return v.String(), true
			}
		}
	}
	return "", false
}

// STKSettlement is a parsed STK push settlement callback.
type STKSettlement struct {
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	Amount            decimal.Decimal
	MpesaReceipt      string
	PhoneNumber       string
}

// ParseSTKSettlement decodes the Body.stkCallback envelope.
func ParseSTKSettlement(raw []byte) (STKSettlement, error) {
	var env struct {
		Body *struct {
			StkCallback *struct {
				MerchantRequestID string      `json:"MerchantRequestID"`
				CheckoutRequestID string      `json:"CheckoutRequestID"`
				ResultCode        json.Number `json:"ResultCode"`
				ResultDesc        string      `json:"ResultDesc"`
				CallbackMetadata  struct {
					Item []struct {
						Name  string `json:"Name"`
						Value any    `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return STKSettlement{}, fmt.Errorf("stk callback: %w", err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return STKSettlement{}, fmt.Errorf("stk callback: missing Body.stkCallback")
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return STKSettlement{}, fmt.Errorf("stk callback: missing CheckoutRequestID")
	}

	s := STKSettlement{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode.String(),
		ResultDesc:        cb.ResultDesc,
	}
	for _, it := range cb.CallbackMetadata.Item {
		switch it.Name {
		case "Amount":
			if f, ok := it.Value.(float64); ok {
				s.Amount = decimal.NewFromFloat(f)
			}
		case "MpesaReceiptNumber":
			if v, ok := it.Value.(string); ok {
				s.MpesaReceipt = v
			}
		case "PhoneNumber":
			switch v := it.Value.(type) {
			case string:
				s.PhoneNumber = v
			case float64:
				s.PhoneNumber = decimal.NewFromFloat(v).String()
			}
		}
	}
	return s, nil
}

// StatusResult is a parsed TransactionStatusQuery result callback.
type StatusResult struct {
	ConversationID    string
	ResultCode        string
	ResultDesc        string
	TransactionStatus string
	PayerName         string
	Amount            string
}

func ParseStatusResult(raw []byte) (StatusResult, error) {
	env, err := decodeResult(raw)
	if err != nil {
		return StatusResult{}, err
	}
	r := env.Result
	out := StatusResult{
		ConversationID: r.ConversationID,
		ResultCode:     r.ResultCode.String(),
		ResultDesc:     r.ResultDesc,
	}
	params := r.ResultParameters.ResultParameter
	out.TransactionStatus, _ = paramString(params, "TransactionStatus")
	out.PayerName, _ = paramString(params, "PayerPartyPublicName")
	out.Amount, _ = paramString(params, "Amount")
	return out, nil
}

// ParseBalanceResult extracts the per-bucket snapshots from an
// AccountBalance result callback. A non-zero result code yields the
// gateway's description as the error.
func ParseBalanceResult(raw []byte) ([]models.BalanceSnapshot, error) {
	env, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	r := env.Result
	if r.ResultCode.String() != "0" {
		return nil, fmt.Errorf("balance query rejected: %s", r.ResultDesc)
	}
	composite, ok := paramString(r.ResultParameters.ResultParameter, "AccountBalance")
	if !ok {
		return nil, fmt.Errorf("balance callback: AccountBalance parameter missing")
	}
	return ParseAccountBalance(composite)
}

// ParseAccountBalance splits the gateway's composite balance string:
// sub-accounts are '&'-delimited, fields within a sub-account are
// '|'-delimited as [bucket, currency, amount, ...].
func ParseAccountBalance(s string) ([]models.BalanceSnapshot, error) {
	var out []models.BalanceSnapshot
	for _, acc := range strings.Split(s, "&") {
		parts := strings.Split(acc, "|")
		if len(parts) < 3 {
			return nil, fmt.Errorf("account balance: malformed segment %q", acc)
		}
		amount, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("account balance: bad amount in %q: %w", acc, err)
		}
		out = append(out, models.BalanceSnapshot{
			AccountType: parts[0],
			Currency:    parts[1],
			Amount:      amount,
		})
	}
	return out, nil
}

// ReversalResult is a parsed TransactionReversal result callback.
type ReversalResult struct {
	ResultCode    string
	ResultDesc    string
	TransactionID string
}

func ParseReversalResult(raw []byte) (ReversalResult, error) {
	env, err := decodeResult(raw)
	if err != nil {
		return ReversalResult{}, err
	}
	r := env.Result
	if r.TransactionID == "" {
		return ReversalResult{}, fmt.Errorf("reversal callback: missing TransactionID")
	}
	return ReversalResult{
		ResultCode:    r.ResultCode.String(),
		ResultDesc:    r.ResultDesc,
		TransactionID: r.TransactionID,
	}, nil
}

// C2BConfirmation is the flat confirmation push for a direct till payment.
// TransAmount arrives as a quoted string.
type C2BConfirmation struct {
	TransID     string `json:"TransID"`
	TransAmount string `json:"TransAmount"`
	MSISDN      string `json:"MSISDN"`
	FirstName   string `json:"FirstName"`
	MiddleName  string `json:"MiddleName"`
	LastName    string `json:"LastName"`
}

func ParseC2BConfirmation(raw []byte) (C2BConfirmation, error) {
	var c C2BConfirmation
	if err := json.Unmarshal(raw, &c); err != nil {
		return C2BConfirmation{}, fmt.Errorf("c2b confirmation: %w", err)
	}
	if c.TransID == "" || c.MSISDN == "" {
		return C2BConfirmation{}, fmt.Errorf("c2b confirmation: missing TransID or MSISDN")
	}
	return c, nil
}
