package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnSuccess   TransactionStatus = "success"
	TxnFailed    TransactionStatus = "failed"
	TxnCancelled TransactionStatus = "cancelled"
	TxnReversed  TransactionStatus = "reversed"
)

// Transaction is a ledger record keyed by the gateway-assigned
// CheckoutRequestID (or the M-Pesa receipt number for pull-synced and C2B
// records). The same settlement can be observed by the status poll, the
// callback receiver and the reconciliation sweep, so every write path goes
// through an upsert on this key.
type Transaction struct {
	CheckoutRequestID string            `json:"checkout_request_id"`
	PhoneNumber       string            `json:"phone_number"`
	CustomerName      string            `json:"customer_name,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	PlatformFee       decimal.Decimal   `json:"platform_fee"`
	Status            TransactionStatus `json:"status"`
	ServiceName       string            `json:"service_name"`
	ResultDesc        string            `json:"result_desc,omitempty"`
	MpesaReceipt      string            `json:"mpesa_receipt,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

var validTransitions = map[TransactionStatus][]TransactionStatus{
	TxnPending: {TxnSuccess, TxnFailed, TxnCancelled},
	TxnSuccess: {TxnReversed},
	// failed, cancelled and reversed are terminal
	TxnFailed:    {},
	TxnCancelled: {},
	TxnReversed:  {},
}

// CanTransition reports whether moving a transaction from one status to
// another is allowed. Transitions are monotone: nothing moves back to
// pending, and only success may be reversed.
func CanTransition(from, to TransactionStatus) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the initiation poll loop.
func (s TransactionStatus) Terminal() bool {
	return s != TxnPending
}
