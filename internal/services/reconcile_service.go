package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/apperr"
	"github.com/auripay/auripay-backend/internal/daraja"
	"github.com/auripay/auripay-backend/internal/metrics"
	"github.com/auripay/auripay-backend/internal/models"
	repo "github.com/auripay/auripay-backend/internal/repository"
)

// maxPullWindow stays under the gateway's 48h lookback cap with margin.
const maxPullWindow = 47 * time.Hour

const sweepServiceName = "pull-auto-sync"

// PullGateway is the slice of the gateway client the sweep needs.
type PullGateway interface {
	PullTransactions(ctx context.Context, start, end time.Time) ([]daraja.PulledTransaction, error)
	RegisterPullURL(ctx context.Context, nominatedNumber string) error
}

// Report summarizes one reconciliation run.
type Report struct {
	Pulled      int `json:"pulled"`
	NewlySynced int `json:"newly_synced"`
}

// ReconcileService is the backstop for callbacks the gateway never
// delivered, callbacks lost to transient errors, and polls that gave up.
// It pulls the gateway's own history for a window, diffs it against the
// ledger and upserts whatever is missing.
type ReconcileService struct {
	gateway PullGateway
	ledger  *LedgerService
	store   repo.Ledger
	log     *slog.Logger
}

func NewReconcileService(g PullGateway, l *LedgerService, store repo.Ledger, log *slog.Logger) *ReconcileService {
	return &ReconcileService{gateway: g, ledger: l, store: store, log: log}
}

// Reconcile pulls the window [start, end], clamped to the gateway's
// allowed lookback, and syncs records absent locally. Bulk-pulled records
// are definitionally settled, so they land as success; the shared
// first-settlement rule decides whether a reward fires.
func (s *ReconcileService) Reconcile(ctx context.Context, start, end time.Time) (Report, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() || end.Sub(start) > maxPullWindow {
		start = end.Add(-maxPullWindow)
	}
	if !end.After(start) {
		return Report{}, &apperr.ValidationError{Field: "window", Msg: "end must be after start"}
	}

	pulled, err := s.gateway.PullTransactions(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	metrics.SweepPulled.Add(float64(len(pulled)))

	ids := make([]string, 0, len(pulled))
	for _, t := range pulled {
		if t.TransactionID != "" {
			ids = append(ids, t.TransactionID)
		}
	}
	known, err := s.store.KnownIDs(ctx, ids)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Pulled: len(pulled)}
	for _, t := range pulled {
		if t.TransactionID == "" || known[t.TransactionID] {
			continue
		}
		if _, first, err := s.syncOne(ctx, t); err != nil {
			// keep sweeping; the next run retries this record
			s.log.Error("sweep sync failed", "transaction_id", t.TransactionID, "err", err)
			continue
		} else if first {
			rep.NewlySynced++
			metrics.SweepSynced.Inc()
		}
	}

	s.log.Info("reconciliation sweep done", "pulled", rep.Pulled, "newly_synced", rep.NewlySynced,
		"window_start", start, "window_end", end)
	return rep, nil
}

// SyncOne force-syncs a single pulled record (manual reconciliation from
// the dashboard). The idempotent settlement path makes repeats harmless.
func (s *ReconcileService) SyncOne(ctx context.Context, t daraja.PulledTransaction) (models.Transaction, bool, error) {
	return s.syncOne(ctx, t)
}

func (s *ReconcileService) syncOne(ctx context.Context, t daraja.PulledTransaction) (models.Transaction, bool, error) {
	amount, err := decimal.NewFromString(t.Amount.String())
	if err != nil {
		return models.Transaction{}, false, &apperr.ValidationError{Field: "amount", Msg: "unparseable amount in pulled record"}
	}

	createdAt := time.Time{}
	if ts, perr := time.Parse("2006-01-02 15:04:05", t.TrxDate); perr == nil {
		createdAt = ts
	}

	return s.ledger.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: t.TransactionID,
		Status:            models.TxnSuccess,
		Amount:            amount,
		PhoneNumber:       t.MSISDN,
		CustomerName:      t.Sender,
		ServiceName:       sweepServiceName,
		MpesaReceipt:      t.TransactionID,
		CreatedAt:         createdAt,
		Source:            "sweep",
	})
}

// RegisterPullURL performs the one-time pull-API registration for the
// store number.
func (s *ReconcileService) RegisterPullURL(ctx context.Context, nominatedNumber string) error {
	return s.gateway.RegisterPullURL(ctx, nominatedNumber)
}
