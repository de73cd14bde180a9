package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/metrics"
	"github.com/auripay/auripay-backend/internal/models"
	repo "github.com/auripay/auripay-backend/internal/repository"
)

// Settlement is one observation of a payment outcome, from whichever path
// saw it: the initiation poll, a gateway callback, the C2B bridge or the
// reconciliation sweep.
type Settlement struct {
	CheckoutRequestID string
	Status            models.TransactionStatus
	Amount            decimal.Decimal
	PhoneNumber       string
	CustomerName      string
	ServiceName       string
	ResultDesc        string
	MpesaReceipt      string
	CreatedAt         time.Time
	Source            string // poll | callback | sweep | c2b
}

// Rewarder is the downstream disbursement trigger. Fire-and-forget: the
// implementation queues the work and never blocks the settlement path.
type Rewarder interface {
	Dispatch(recipient string, amount decimal.Decimal)
}

// LedgerService owns the shared idempotency rule: every observation is an
// upsert by correlation id, and a reward fires only when the write
// demonstrably settled the payment for the first time. Callback, poll and
// sweep can all race on the same id; the storage outcome decides which one
// dispatches.
type LedgerService struct {
	ledger  repo.Ledger
	audit   repo.AuditLogs
	rewards Rewarder
	log     *slog.Logger
}

func NewLedgerService(l repo.Ledger, a repo.AuditLogs, r Rewarder, log *slog.Logger) *LedgerService {
	return &LedgerService{ledger: l, audit: a, rewards: r, log: log}
}

// RecordPending persists the initial pending row for a freshly accepted
// payment request. Existing rows are kept untouched.
func (s *LedgerService) RecordPending(ctx context.Context, tx models.Transaction) error {
	if err := s.ledger.RecordPending(ctx, tx); err != nil {
		return err
	}
	s.auditLog(ctx, tx.CheckoutRequestID, "created", map[string]any{"status": "pending", "service": tx.ServiceName})
	return nil
}

// RecordSettlement commits one settlement observation and reports whether
// this write settled the payment for the first time. Returns the stored
// row as the ledger now sees it.
func (s *LedgerService) RecordSettlement(ctx context.Context, obs Settlement) (models.Transaction, bool, error) {
	tx := models.Transaction{
		CheckoutRequestID: obs.CheckoutRequestID,
		PhoneNumber:       obs.PhoneNumber,
		CustomerName:      obs.CustomerName,
		Amount:            obs.Amount,
		Status:            obs.Status,
		ServiceName:       obs.ServiceName,
		ResultDesc:        obs.ResultDesc,
		MpesaReceipt:      obs.MpesaReceipt,
		CreatedAt:         obs.CreatedAt,
	}

	stored, outcome, err := s.ledger.RecordSettlement(ctx, tx)
	if err != nil {
		// never swallowed: a lost settlement write risks a duplicate
		// reward on the next observation
		s.log.Error("settlement write failed", "checkout_id", obs.CheckoutRequestID, "source", obs.Source, "err", err)
		return models.Transaction{}, false, err
	}

	metrics.SettlementsRecorded.WithLabelValues(obs.Source, outcomeLabel(outcome)).Inc()

	first := outcome != repo.SettlementSkipped && obs.Status == models.TxnSuccess
	if outcome == repo.SettlementSkipped {
		s.log.Debug("settlement already recorded", "checkout_id", obs.CheckoutRequestID, "status", stored.Status, "source", obs.Source)
		return stored, false, nil
	}

	s.auditLog(ctx, obs.CheckoutRequestID, "settled", map[string]any{
		"status": string(obs.Status), "source": obs.Source, "first": first,
	})
	s.log.Info("settlement recorded",
		"checkout_id", obs.CheckoutRequestID, "status", obs.Status, "source", obs.Source, "first", first)

	if first && s.rewards != nil {
		s.rewards.Dispatch(stored.PhoneNumber, stored.Amount)
	}
	return stored, first, nil
}

// MarkReversed applies a confirmed reversal by receipt number.
func (s *LedgerService) MarkReversed(ctx context.Context, receipt string) (bool, error) {
	ok, err := s.ledger.MarkReversedByReceipt(ctx, receipt)
	if err != nil {
		return false, err
	}
	if ok {
		s.auditLog(ctx, receipt, "reversed", nil)
	}
	return ok, nil
}

func (s *LedgerService) Get(ctx context.Context, checkoutRequestID string) (models.Transaction, error) {
	return s.ledger.Get(ctx, checkoutRequestID)
}

func (s *LedgerService) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	return s.ledger.List(ctx, limit, offset)
}

func (s *LedgerService) auditLog(ctx context.Context, entityID, action string, details map[string]any) {
	id := entityID
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &id,
		Action:     action,
		Details:    details,
	}); err != nil {
		s.log.Warn("audit write failed", "action", action, "entity", entityID, "err", err)
	}
}

func outcomeLabel(o repo.SettlementOutcome) string {
	switch o {
	case repo.SettlementInserted:
		return "inserted"
	case repo.SettlementUpdated:
		return "updated"
	default:
		return "skipped"
	}
}
