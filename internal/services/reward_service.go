package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/airtime"
	"github.com/auripay/auripay-backend/internal/metrics"
	"github.com/auripay/auripay-backend/internal/models"
	"github.com/auripay/auripay-backend/internal/phone"
	repo "github.com/auripay/auripay-backend/internal/repository"
	"github.com/auripay/auripay-backend/internal/worker"
)

// Provider disburses airtime. Satisfied by *airtime.Client.
type Provider interface {
	Dispatch(ctx context.Context, phone string, amount decimal.Decimal) (airtime.Receipt, error)
}

// RewardService performs the downstream top-up for settled payments.
// Per-payment at-most-once is enforced upstream by the settlement outcome;
// this service only gates on the amount threshold and keeps failures away
// from the payment-confirmation path.
type RewardService struct {
	provider  Provider
	pool      *worker.Pool
	audit     repo.AuditLogs
	threshold decimal.Decimal
	timeout   time.Duration
	log       *slog.Logger
}

func NewRewardService(p Provider, wp *worker.Pool, a repo.AuditLogs, threshold decimal.Decimal, log *slog.Logger) *RewardService {
	return &RewardService{
		provider:  p,
		pool:      wp,
		audit:     a,
		threshold: threshold,
		timeout:   30 * time.Second,
		log:       log,
	}
}

// Dispatch queues a disbursement and returns immediately. Amounts under
// the threshold are a deliberate no-op, not an error. Dispatch failures
// are logged and audited only; the settled transaction is never touched.
func (s *RewardService) Dispatch(recipient string, amount decimal.Decimal) {
	if amount.LessThan(s.threshold) {
		metrics.RewardsSkipped.Inc()
		s.log.Debug("reward below threshold, skipping", "recipient", recipient, "amount", amount)
		return
	}

	msisdn, err := phone.Normalize(recipient)
	if err != nil {
		// pull-synced records can carry masked msisdns; nothing to top up
		metrics.RewardsFailed.Inc()
		s.log.Warn("reward recipient not dispatchable", "recipient", recipient, "err", err)
		return
	}

	s.pool.Submit(func() { s.deliver(msisdn, amount) })
}

func (s *RewardService) deliver(msisdn string, amount decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	receipt, err := s.provider.Dispatch(ctx, msisdn, amount)
	if err != nil {
		metrics.RewardsFailed.Inc()
		s.log.Error("airtime dispatch failed", "recipient", msisdn, "amount", amount, "err", err)
		s.auditLog(ctx, msisdn, "reward_failed", map[string]any{"amount": amount.String(), "error": err.Error()})
		return
	}

	metrics.RewardsDispatched.Inc()
	s.log.Info("airtime dispatched", "recipient", msisdn, "amount", amount, "request_id", receipt.RequestID)
	s.auditLog(ctx, msisdn, "reward_dispatched", map[string]any{
		"amount": amount.String(), "request_id": receipt.RequestID,
	})
}

func (s *RewardService) auditLog(ctx context.Context, entityID, action string, details map[string]any) {
	id := entityID
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "reward",
		EntityID:   &id,
		Action:     action,
		Details:    details,
	}); err != nil {
		s.log.Warn("audit write failed", "action", action, "err", err)
	}
}
