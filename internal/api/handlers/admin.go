package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/api/httpx"
	"github.com/auripay/auripay-backend/internal/auth"
	"github.com/auripay/auripay-backend/internal/config"
	"github.com/auripay/auripay-backend/internal/daraja"
	"github.com/auripay/auripay-backend/internal/models"
	"github.com/auripay/auripay-backend/internal/services"
	"github.com/auripay/auripay-backend/internal/stream"
)

// AdminHandler backs the operator dashboard API: transaction history,
// balances, manual reconciliation, reversals and status queries. The
// HTML dashboard itself is a separate consumer of these endpoints.
type AdminHandler struct {
	Cfg       config.Config
	TM        *auth.TokenManager
	Ledger    *services.LedgerService
	Balances  *services.BalanceService
	Reconcile *services.ReconcileService
	Gateway   *daraja.Client
	Hub       *stream.Hub
	Log       *slog.Logger
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges the operator credential for a dashboard session token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if req.Username != h.Cfg.AdminUsername || !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
		return
	}
	tok, exp, err := h.TM.Generate(req.Username)
	if err != nil {
		h.Log.Error("token generation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not create session", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp,
	})
}

// Transactions lists the ledger newest-first with a running success total
// for the dashboard header.
func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginate(r, 100)
	txs, err := h.Ledger.List(r.Context(), limit, offset)
	if err != nil {
		h.Log.Error("transaction list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not load transactions", nil)
		return
	}

	total := decimal.Zero
	for _, t := range txs {
		if t.Status == models.TxnSuccess {
			total = total.Add(t.Amount)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total_amount": total,
	})
}

// BalancesView returns gateway snapshots plus the airtime provider's
// balance. The provider side never errors; it degrades to a zero/unknown
// sentinel.
func (h *AdminHandler) BalancesView(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Balances.List(r.Context())
	if err != nil {
		h.Log.Error("balance list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not load balances", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"gateway_accounts": snaps,
		"airtime_provider": h.Balances.ProviderBalance(r.Context()),
	})
}

// RequestBalance fires the async gateway balance query.
func (h *AdminHandler) RequestBalance(w http.ResponseWriter, r *http.Request) {
	ack, err := h.Balances.RequestGatewayBalance(r.Context())
	if err != nil {
		h.Log.Error("balance request failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", "balance request failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ack)
}

type reconcileReq struct {
	StartDate string `json:"start_date"` // RFC3339, optional
	EndDate   string `json:"end_date"`
}

// RunReconcile triggers a sweep for the requested window (defaults to the
// maximum allowed lookback ending now).
func (h *AdminHandler) RunReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	var start, end time.Time
	if req.StartDate != "" {
		start, _ = time.Parse(time.RFC3339, req.StartDate)
	}
	if req.EndDate != "" {
		end, _ = time.Parse(time.RFC3339, req.EndDate)
	}

	rep, err := h.Reconcile.Reconcile(r.Context(), start, end)
	if err != nil {
		h.Log.Error("manual reconcile failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "sweep_failed", "reconciliation sweep failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

// SyncTransaction force-syncs one pulled record from the dashboard's
// reconciliation view. Repeats are harmless.
func (h *AdminHandler) SyncTransaction(w http.ResponseWriter, r *http.Request) {
	var t daraja.PulledTransaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.TransactionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid pulled record", nil)
		return
	}
	tx, first, err := h.Reconcile.SyncOne(r.Context(), t)
	if err != nil {
		h.Log.Error("manual sync failed", "transaction_id", t.TransactionID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "sync failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"transaction":  tx,
		"newly_synced": first,
	})
}

type reverseReq struct {
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
}

// Reverse initiates an async reversal; the ledger changes only when the
// result callback confirms.
func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "transaction_id required", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "amount must be a positive decimal", nil)
		return
	}
	ack, err := h.Gateway.Reverse(r.Context(), req.TransactionID, amount)
	if err != nil {
		h.Log.Error("reversal initiation failed", "transaction_id", req.TransactionID, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", "failed to initiate reversal", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ack)
}

type statusQueryReq struct {
	TransactionID string `json:"transaction_id"`
}

// StatusQuery starts an async transaction status lookup. The result
// arrives on the status callback and is streamed to subscribers of the
// returned conversation id.
func (h *AdminHandler) StatusQuery(w http.ResponseWriter, r *http.Request) {
	var req statusQueryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "transaction_id required", nil)
		return
	}
	ack, err := h.Gateway.QueryTransactionStatus(r.Context(), req.TransactionID)
	if err != nil {
		h.Log.Error("status query failed", "transaction_id", req.TransactionID, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", "failed to initiate status query", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ack)
}

// StatusStream is the server-push channel for status query results, keyed
// by conversation id. Subscription lifetime is tied to the connection:
// teardown unsubscribes.
func (h *AdminHandler) StatusStream(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := h.Hub.Subscribe(conversationID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// RegisterC2B performs the one-time C2B confirmation URL registration.
func (h *AdminHandler) RegisterC2B(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.RegisterC2BURL(r.Context()); err != nil {
		h.Log.Error("c2b registration failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", "c2b registration failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "c2b urls registered"})
}

// RegisterPull performs the one-time pull-API registration.
func (h *AdminHandler) RegisterPull(w http.ResponseWriter, r *http.Request) {
	if err := h.Reconcile.RegisterPullURL(r.Context(), h.Cfg.NominatedNumber); err != nil {
		h.Log.Error("pull registration failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", "pull registration failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "pull callback registered"})
}

func paginate(r *http.Request, def int) (limit, offset int) {
	limit, offset = def, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
