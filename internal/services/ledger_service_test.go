package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/models"
)

func newLedgerFixture() (*LedgerService, *memLedger, *fakeRewarder) {
	ml := newMemLedger()
	rw := &fakeRewarder{}
	svc := NewLedgerService(ml, &memAudit{}, rw, discardLogger())
	return svc, ml, rw
}

// The same settlement arriving from two paths must produce one success row
// and exactly one reward dispatch, regardless of which path wins.
func TestRecordSettlementIdempotent(t *testing.T) {
	svc, ml, rw := newLedgerFixture()
	ctx := context.Background()

	fromCallback := Settlement{
		CheckoutRequestID: "ws_CO_001",
		Status:            models.TxnSuccess,
		Amount:            decimal.NewFromInt(100),
		PhoneNumber:       "254712345678",
		ResultDesc:        "The service request is processed successfully.",
		MpesaReceipt:      "NLJ7RT61SV",
		Source:            "callback",
	}
	_, first, err := svc.RecordSettlement(ctx, fromCallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Fatal("fresh success settlement must report first=true")
	}

	fromSweep := fromCallback
	fromSweep.Source = "sweep"
	fromSweep.ServiceName = "pull-auto-sync"
	stored, first, err := svc.RecordSettlement(ctx, fromSweep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first {
		t.Fatal("repeat observation must report first=false")
	}
	if stored.Status != models.TxnSuccess {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if got := rw.count(); got != 1 {
		t.Fatalf("reward dispatched %d times, want 1", got)
	}
	if ml.status("ws_CO_001") != models.TxnSuccess {
		t.Fatalf("ledger status = %s", ml.status("ws_CO_001"))
	}
}

// A pending row promoted to success by a later observation still counts as
// the first settlement and triggers the reward.
func TestRecordSettlementPromotesPending(t *testing.T) {
	svc, _, rw := newLedgerFixture()
	ctx := context.Background()

	if err := svc.RecordPending(ctx, models.Transaction{
		CheckoutRequestID: "ws_CO_002",
		PhoneNumber:       "254712345678",
		Amount:            decimal.NewFromInt(50),
		Status:            models.TxnPending,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, first, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_002",
		Status:            models.TxnSuccess,
		Amount:            decimal.NewFromInt(50),
		PhoneNumber:       "254712345678",
		Source:            "poll",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Fatal("pending->success promotion must report first=true")
	}
	if got := rw.count(); got != 1 {
		t.Fatalf("reward dispatched %d times, want 1", got)
	}
}

// Failed and cancelled settlements never dispatch a reward, and a terminal
// failure is never overwritten by a later success observation.
func TestRecordSettlementTerminalGuard(t *testing.T) {
	svc, ml, rw := newLedgerFixture()
	ctx := context.Background()

	_, first, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_003",
		Status:            models.TxnFailed,
		Amount:            decimal.NewFromInt(75),
		PhoneNumber:       "254712345678",
		ResultDesc:        "The balance is insufficient for the transaction",
		Source:            "callback",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first {
		t.Fatal("failed settlement must not report first=true")
	}

	stored, first, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_003",
		Status:            models.TxnSuccess,
		Amount:            decimal.NewFromInt(75),
		PhoneNumber:       "254712345678",
		Source:            "sweep",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first {
		t.Fatal("success after failed must be skipped")
	}
	if stored.Status != models.TxnFailed {
		t.Fatalf("stored status = %s, want failed preserved", stored.Status)
	}
	if rw.count() != 0 {
		t.Fatalf("reward dispatched %d times, want 0", rw.count())
	}
	if ml.status("ws_CO_003") != models.TxnFailed {
		t.Fatalf("ledger status = %s", ml.status("ws_CO_003"))
	}
}

// Failure callbacks carry no metadata, so they arrive with a zero amount.
// Settling the row as failed must not zero the amount the payment was
// initiated with.
func TestRecordSettlementKeepsInitiatedAmount(t *testing.T) {
	svc, ml, rw := newLedgerFixture()
	ctx := context.Background()

	if err := svc.RecordPending(ctx, models.Transaction{
		CheckoutRequestID: "ws_CO_005",
		PhoneNumber:       "254712345678",
		Amount:            decimal.NewFromInt(10),
		Status:            models.TxnPending,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, first, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_005",
		Status:            models.TxnCancelled,
		Amount:            decimal.Zero,
		ResultDesc:        "Request cancelled by user",
		Source:            "callback",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first {
		t.Fatal("cancellation must not report first=true")
	}
	if stored.Status != models.TxnCancelled {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if !stored.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stored amount = %s, want initiated amount preserved", stored.Amount)
	}
	if rw.count() != 0 {
		t.Fatalf("reward count = %d, want 0", rw.count())
	}
	if got, _ := ml.Get(ctx, "ws_CO_005"); !got.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("ledger amount = %s, want 10", got.Amount)
	}
}

// A success callback's metadata amount replaces the pending row's.
func TestRecordSettlementTakesCallbackAmount(t *testing.T) {
	svc, ml, _ := newLedgerFixture()
	ctx := context.Background()

	if err := svc.RecordPending(ctx, models.Transaction{
		CheckoutRequestID: "ws_CO_006",
		PhoneNumber:       "254712345678",
		Amount:            decimal.NewFromInt(10),
		Status:            models.TxnPending,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_006",
		Status:            models.TxnSuccess,
		Amount:            decimal.RequireFromString("10.50"),
		PhoneNumber:       "254712345678",
		MpesaReceipt:      "NLJ7RT61SW",
		Source:            "callback",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := ml.Get(ctx, "ws_CO_006")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("ledger amount = %s, want callback amount", tx.Amount)
	}
}

func TestMarkReversed(t *testing.T) {
	svc, ml, _ := newLedgerFixture()
	ctx := context.Background()

	if _, _, err := svc.RecordSettlement(ctx, Settlement{
		CheckoutRequestID: "ws_CO_004",
		Status:            models.TxnSuccess,
		Amount:            decimal.NewFromInt(200),
		PhoneNumber:       "254712345678",
		MpesaReceipt:      "SGE8P4F6LW",
		Source:            "callback",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := svc.MarkReversed(ctx, "SGE8P4F6LW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected reversal to apply")
	}
	if ml.status("ws_CO_004") != models.TxnReversed {
		t.Fatalf("ledger status = %s", ml.status("ws_CO_004"))
	}

	// second application finds no success row for the receipt
	ok, err = svc.MarkReversed(ctx, "SGE8P4F6LW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected repeat reversal to be a no-op")
	}
}
