package repository

import (
	"context"
	"errors"

	"github.com/auripay/auripay-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

// SettlementOutcome reports what a settlement upsert actually did. The
// distinction is the idempotency primitive the whole system leans on:
// reward dispatch keys off Inserted/Updated, never off mere observation.
type SettlementOutcome int

const (
	// SettlementSkipped: the row already held a terminal status and the
	// monotone guard refused the write.
	SettlementSkipped SettlementOutcome = iota
	// SettlementInserted: the write created a new row.
	SettlementInserted
	// SettlementUpdated: the write promoted an existing pending row (or
	// success -> reversed).
	SettlementUpdated
)

type Ledger interface {
	// RecordPending inserts a pending row, keeping any existing row
	// untouched on conflict.
	RecordPending(ctx context.Context, tx models.Transaction) error

	// RecordSettlement applies a terminal observation atomically:
	// insert-or-conditionally-update by checkout_request_id in a single
	// statement, returning the stored row and what happened. The status
	// guard in SQL enforces monotone transitions.
	RecordSettlement(ctx context.Context, tx models.Transaction) (models.Transaction, SettlementOutcome, error)

	// MarkReversedByReceipt moves a settled row to reversed, matched by
	// its M-Pesa receipt number.
	MarkReversedByReceipt(ctx context.Context, receipt string) (bool, error)

	Get(ctx context.Context, checkoutRequestID string) (models.Transaction, error)
	List(ctx context.Context, limit, offset int) ([]models.Transaction, error)

	// KnownIDs returns which of the given correlation ids already exist
	// locally. Used by the reconciliation diff.
	KnownIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type BalanceSnapshots interface {
	Upsert(ctx context.Context, snap models.BalanceSnapshot) error
	List(ctx context.Context) ([]models.BalanceSnapshot, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
