package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auripay/auripay-backend/internal/api/handlers"
	"github.com/auripay/auripay-backend/internal/auth"
	"github.com/auripay/auripay-backend/internal/config"
	"github.com/auripay/auripay-backend/internal/middleware"
)

type RouterDeps struct {
	Cfg       config.Config
	TM        *auth.TokenManager
	Payments  *handlers.PaymentHandler
	Callbacks *handlers.CallbackHandler
	Admin     *handlers.AdminHandler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	// gateway-facing callbacks; unauthenticated by contract, always ack
	r.Route("/callback", func(r chi.Router) {
		r.Post("/stk", d.Callbacks.STK)
		r.Post("/balance", d.Callbacks.Balance)
		r.Post("/status", d.Callbacks.Status)
		r.Post("/reversal", d.Callbacks.Reversal)
		r.Post("/c2b", d.Callbacks.C2B)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// payer-facing
		r.Post("/payments", d.Payments.Initiate)
		r.Get("/payments/{id}", d.Payments.Status)

		// operator dashboard
		r.Post("/admin/login", d.Admin.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(d.TM))
			r.Get("/admin/transactions", d.Admin.Transactions)
			r.Get("/admin/balances", d.Admin.BalancesView)
			r.Post("/admin/balances/request", d.Admin.RequestBalance)
			r.Post("/admin/reconcile", d.Admin.RunReconcile)
			r.Post("/admin/reconcile/sync", d.Admin.SyncTransaction)
			r.Post("/admin/reversals", d.Admin.Reverse)
			r.Post("/admin/status-query", d.Admin.StatusQuery)
			r.Get("/admin/status/stream/{conversationID}", d.Admin.StatusStream)
			r.Post("/admin/register/c2b", d.Admin.RegisterC2B)
			r.Post("/admin/register/pull", d.Admin.RegisterPull)
		})
	})

	return r
}
