package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/api/httpx"
	"github.com/auripay/auripay-backend/internal/daraja"
	"github.com/auripay/auripay-backend/internal/metrics"
	"github.com/auripay/auripay-backend/internal/models"
	"github.com/auripay/auripay-backend/internal/services"
	"github.com/auripay/auripay-backend/internal/stream"
)

// CallbackHandler receives gateway-originated POSTs. Every endpoint here
// acknowledges success no matter what happens internally; a non-200 would
// only trigger the gateway's retry storm against a payload we already
// know how to handle or never will.
type CallbackHandler struct {
	Ledger   *services.LedgerService
	Balances *services.BalanceService
	Hub      *stream.Hub
	Log      *slog.Logger
}

func (h *CallbackHandler) readBody(r *http.Request) []byte {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.Log.Error("callback body read failed", "err", err)
		return nil
	}
	return body
}

// STK handles the settlement callback for an STK push.
func (h *CallbackHandler) STK(w http.ResponseWriter, r *http.Request) {
	defer httpx.Ack(w)
	metrics.CallbacksReceived.WithLabelValues("stk").Inc()

	body := h.readBody(r)
	if body == nil {
		return
	}
	cb, err := daraja.ParseSTKSettlement(body)
	if err != nil {
		h.Log.Error("unparseable stk callback", "err", err)
		return
	}

	status := daraja.StatusForResultCode(cb.ResultCode)
	if _, _, err := h.Ledger.RecordSettlement(r.Context(), services.Settlement{
		CheckoutRequestID: cb.CheckoutRequestID,
		Status:            status,
		Amount:            cb.Amount,
		PhoneNumber:       cb.PhoneNumber,
		ResultDesc:        cb.ResultDesc,
		MpesaReceipt:      cb.MpesaReceipt,
		Source:            "callback",
	}); err != nil {
		h.Log.Error("stk callback settlement failed", "checkout_id", cb.CheckoutRequestID, "err", err)
	}
}

// Balance handles the AccountBalance result callback: one snapshot upsert
// per sub-account in the composite balance string.
func (h *CallbackHandler) Balance(w http.ResponseWriter, r *http.Request) {
	defer httpx.Ack(w)
	metrics.CallbacksReceived.WithLabelValues("balance").Inc()

	body := h.readBody(r)
	if body == nil {
		return
	}
	snaps, err := daraja.ParseBalanceResult(body)
	if err != nil {
		h.Log.Warn("balance callback not applied", "err", err)
		return
	}
	if err := h.Balances.ApplySnapshots(r.Context(), snaps); err != nil {
		h.Log.Error("balance snapshot store failed", "err", err)
	}
}

// Status handles the TransactionStatusQuery result callback and pushes the
// outcome to any dashboard stream watching that conversation.
func (h *CallbackHandler) Status(w http.ResponseWriter, r *http.Request) {
	defer httpx.Ack(w)
	metrics.CallbacksReceived.WithLabelValues("status").Inc()

	body := h.readBody(r)
	if body == nil {
		return
	}
	res, err := daraja.ParseStatusResult(body)
	if err != nil {
		h.Log.Error("unparseable status callback", "err", err)
		return
	}

	msg, _ := json.Marshal(map[string]string{
		"status": res.TransactionStatus,
		"sender": res.PayerName,
		"amount": res.Amount,
	})
	delivered := h.Hub.Publish(res.ConversationID, msg)
	h.Log.Info("status result received", "conversation_id", res.ConversationID,
		"status", res.TransactionStatus, "subscribers", delivered)
}

// Reversal handles the TransactionReversal result callback. Only a
// confirmed reversal moves a settled row to reversed.
func (h *CallbackHandler) Reversal(w http.ResponseWriter, r *http.Request) {
	defer httpx.Ack(w)
	metrics.CallbacksReceived.WithLabelValues("reversal").Inc()

	body := h.readBody(r)
	if body == nil {
		return
	}
	res, err := daraja.ParseReversalResult(body)
	if err != nil {
		h.Log.Error("unparseable reversal callback", "err", err)
		return
	}
	if res.ResultCode != "0" {
		h.Log.Warn("reversal rejected by gateway", "transaction_id", res.TransactionID, "desc", res.ResultDesc)
		return
	}
	ok, err := h.Ledger.MarkReversed(r.Context(), res.TransactionID)
	if err != nil {
		h.Log.Error("reversal update failed", "transaction_id", res.TransactionID, "err", err)
		return
	}
	if !ok {
		h.Log.Warn("reversal callback for unknown or non-success receipt", "transaction_id", res.TransactionID)
	}
}

// C2B handles the confirmation push for direct till payments. C2B records
// are settled by definition; the shared first-settlement rule drives the
// airtime bridge.
func (h *CallbackHandler) C2B(w http.ResponseWriter, r *http.Request) {
	defer httpx.Ack(w)
	metrics.CallbacksReceived.WithLabelValues("c2b").Inc()

	body := h.readBody(r)
	if body == nil {
		return
	}
	c, err := daraja.ParseC2BConfirmation(body)
	if err != nil {
		h.Log.Error("unparseable c2b confirmation", "err", err)
		return
	}
	amount, err := decimal.NewFromString(c.TransAmount)
	if err != nil {
		h.Log.Error("c2b confirmation with bad amount", "trans_id", c.TransID, "amount", c.TransAmount)
		return
	}

	name := c.FirstName
	if c.MiddleName != "" {
		name += " " + c.MiddleName
	}
	if _, _, err := h.Ledger.RecordSettlement(r.Context(), services.Settlement{
		CheckoutRequestID: c.TransID,
		Status:            models.TxnSuccess,
		Amount:            amount,
		PhoneNumber:       c.MSISDN,
		CustomerName:      name,
		ServiceName:       "c2b-airtime-bridge",
		MpesaReceipt:      c.TransID,
		Source:            "c2b",
	}); err != nil {
		h.Log.Error("c2b settlement failed", "trans_id", c.TransID, "err", err)
	}
}
