package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/models"
	repo "github.com/auripay/auripay-backend/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memLedger mirrors the storage contract the postgres repo guarantees:
// upsert-by-key with the monotone status guard, reporting inserted vs
// updated vs skipped atomically under its lock.
type memLedger struct {
	mu   sync.Mutex
	rows map[string]models.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]models.Transaction)}
}

func (m *memLedger) RecordPending(ctx context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tx.CheckoutRequestID]; ok {
		return nil
	}
	tx.Status = models.TxnPending
	m.rows[tx.CheckoutRequestID] = tx
	return nil
}

func (m *memLedger) RecordSettlement(ctx context.Context, tx models.Transaction) (models.Transaction, repo.SettlementOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rows[tx.CheckoutRequestID]
	if !ok {
		m.rows[tx.CheckoutRequestID] = tx
		return tx, repo.SettlementInserted, nil
	}
	if !models.CanTransition(existing.Status, tx.Status) {
		return existing, repo.SettlementSkipped, nil
	}
	if existing.Status == models.TxnPending && !tx.Amount.IsZero() {
		existing.Amount = tx.Amount
	}
	existing.Status = tx.Status
	existing.ResultDesc = tx.ResultDesc
	if tx.MpesaReceipt != "" {
		existing.MpesaReceipt = tx.MpesaReceipt
	}
	if tx.PhoneNumber != "" {
		existing.PhoneNumber = tx.PhoneNumber
	}
	m.rows[tx.CheckoutRequestID] = existing
	return existing, repo.SettlementUpdated, nil
}

func (m *memLedger) MarkReversedByReceipt(ctx context.Context, receipt string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tx := range m.rows {
		if tx.MpesaReceipt == receipt && tx.Status == models.TxnSuccess {
			tx.Status = models.TxnReversed
			m.rows[id] = tx
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) Get(ctx context.Context, id string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, nil
}

func (m *memLedger) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, 0, len(m.rows))
	for _, tx := range m.rows {
		out = append(out, tx)
	}
	return out, nil
}

func (m *memLedger) KnownIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	known := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			known[id] = true
		}
	}
	return known, nil
}

func (m *memLedger) status(id string) models.TransactionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *memAudit) Create(ctx context.Context, l models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, l)
	return nil
}

type dispatchCall struct {
	recipient string
	amount    decimal.Decimal
}

type fakeRewarder struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (f *fakeRewarder) Dispatch(recipient string, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{recipient, amount})
}

func (f *fakeRewarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
