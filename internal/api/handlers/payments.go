package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/api/httpx"
	"github.com/auripay/auripay-backend/internal/apperr"
	repo "github.com/auripay/auripay-backend/internal/repository"
	"github.com/auripay/auripay-backend/internal/services"
)

type PaymentHandler struct {
	Payments *services.PaymentService
	Log      *slog.Logger
}

type initiateReq struct {
	PhoneNumber string `json:"phone_number"`
	Amount      string `json:"amount"`
	ServiceName string `json:"service_name"`
}

// Initiate accepts a payment request and replies with the tracking id as
// soon as the gateway accepts the push. Settlement is learned separately;
// clients poll GET /payments/{id}.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "amount must be a decimal number", nil)
		return
	}

	checkoutID, err := h.Payments.Initiate(r.Context(), req.PhoneNumber, amount, req.ServiceName)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"checkout_request_id": checkoutID,
		"status":              "pending",
	})
}

// Status returns the ledger's current view of one payment.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := h.Payments.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown checkout request id", nil)
			return
		}
		h.Log.Error("payment status lookup failed", "checkout_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not load payment", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// writePaymentError maps the error taxonomy onto payer-facing responses:
// validation details go back verbatim, gateway descriptions are surfaced
// for display, everything else is generic with full detail logged.
func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", verr.Error(), nil)
		return
	}
	var gerr *apperr.GatewayError
	if errors.As(err, &gerr) {
		h.Log.Warn("gateway rejected payment", "err", gerr)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", gerr.Desc, nil)
		return
	}
	var aerr *apperr.AuthError
	if errors.As(err, &aerr) {
		h.Log.Error("gateway auth failure", "err", aerr)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_auth", "payment service unavailable", nil)
		return
	}
	h.Log.Error("payment initiation failed", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not initiate payment", nil)
}
