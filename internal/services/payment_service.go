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
	"github.com/auripay/auripay-backend/internal/phone"
)

// PaymentGateway is the slice of the gateway client the initiation flow
// needs. Satisfied by *daraja.Client.
type PaymentGateway interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal) (daraja.STKAccepted, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (daraja.STKQueryResult, error)
}

// PaymentService runs the initiation flow: validate, push, persist a
// pending row, hand back the tracking id, then learn the outcome from a
// detached bounded poll. The caller's HTTP response never waits on
// settlement; clients fetch status separately by checkout id.
type PaymentService struct {
	gateway      PaymentGateway
	ledger       *LedgerService
	pollInterval time.Duration
	pollMax      int
	log          *slog.Logger
}

func NewPaymentService(g PaymentGateway, l *LedgerService, pollInterval time.Duration, pollMax int, log *slog.Logger) *PaymentService {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if pollMax <= 0 {
		pollMax = 8
	}
	return &PaymentService{gateway: g, ledger: l, pollInterval: pollInterval, pollMax: pollMax, log: log}
}

// Initiate submits a payment request and returns the gateway's checkout
// request id as soon as the push is accepted.
func (s *PaymentService) Initiate(ctx context.Context, rawPhone string, amount decimal.Decimal, serviceName string) (string, error) {
	msisdn, err := phone.Normalize(rawPhone)
	if err != nil {
		return "", err
	}
	if !amount.IsPositive() {
		return "", &apperr.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if serviceName == "" {
		serviceName = "Service payment"
	}

	acc, err := s.gateway.STKPush(ctx, msisdn, amount)
	if err != nil {
		return "", err
	}
	metrics.PaymentsInitiated.Inc()

	if err := s.ledger.RecordPending(ctx, models.Transaction{
		CheckoutRequestID: acc.CheckoutRequestID,
		PhoneNumber:       msisdn,
		Amount:            amount,
		Status:            models.TxnPending,
		ServiceName:       serviceName,
	}); err != nil {
		// the push already went out; surface the storage error, the
		// sweep will still pick the settlement up later
		return acc.CheckoutRequestID, err
	}

	go s.poll(acc.CheckoutRequestID, msisdn, amount, serviceName)

	return acc.CheckoutRequestID, nil
}

// poll runs detached from the initiating request with its own deadline.
// It terminates on the first terminal result code or when the attempt
// budget is spent; exhaustion leaves the row pending for the
// reconciliation sweep to resolve.
func (s *PaymentService) poll(checkoutID, msisdn string, amount decimal.Decimal, serviceName string) {
	budget := time.Duration(s.pollMax+1) * s.pollInterval
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.pollMax; attempt++ {
		select {
		case <-ctx.Done():
			metrics.PollExhausted.Inc()
			s.log.Warn("status poll deadline hit", "checkout_id", checkoutID, "attempt", attempt)
			return
		case <-ticker.C:
		}

		res, err := s.gateway.STKQuery(ctx, checkoutID)
		if err != nil {
			// "transaction is being processed" comes back as an error
			// envelope; transient failures retry within the budget too
			s.log.Debug("status poll not resolved", "checkout_id", checkoutID, "attempt", attempt, "err", err)
			continue
		}
		if res.ResultCode == "" {
			continue
		}

		status := daraja.StatusForResultCode(res.ResultCode)
		s.log.Info("status poll terminal", "checkout_id", checkoutID, "code", res.ResultCode, "status", status)

		_, _, err = s.ledger.RecordSettlement(ctx, Settlement{
			CheckoutRequestID: checkoutID,
			Status:            status,
			Amount:            amount,
			PhoneNumber:       msisdn,
			ServiceName:       serviceName,
			ResultDesc:        res.ResultDesc,
			Source:            "poll",
		})
		if err != nil {
			s.log.Error("poll settlement write failed", "checkout_id", checkoutID, "err", err)
		}
		return
	}

	metrics.PollExhausted.Inc()
	s.log.Warn("status poll exhausted, leaving pending for sweep", "checkout_id", checkoutID, "attempts", s.pollMax)
}

// Status exposes the current ledger view of one payment for client
// polling.
func (s *PaymentService) Status(ctx context.Context, checkoutID string) (models.Transaction, error) {
	return s.ledger.Get(ctx, checkoutID)
}
