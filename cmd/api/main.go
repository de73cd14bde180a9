package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/airtime"
	"github.com/auripay/auripay-backend/internal/api"
	"github.com/auripay/auripay-backend/internal/api/handlers"
	"github.com/auripay/auripay-backend/internal/auth"
	"github.com/auripay/auripay-backend/internal/config"
	"github.com/auripay/auripay-backend/internal/daraja"
	"github.com/auripay/auripay-backend/internal/db"
	"github.com/auripay/auripay-backend/internal/logger"
	"github.com/auripay/auripay-backend/internal/metrics"
	"github.com/auripay/auripay-backend/internal/repository/postgres"
	"github.com/auripay/auripay-backend/internal/services"
	"github.com/auripay/auripay-backend/internal/stream"
	"github.com/auripay/auripay-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	wp.Depth = metrics.WorkerQueueDepth.Add
	defer wp.Stop()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tokens := daraja.NewTokenSource(httpClient, cfg.DarajaBaseURL, cfg.ConsumerKey, cfg.ConsumerSecret, 0)
	gateway := daraja.NewClient(daraja.Config{
		BaseURL:            cfg.DarajaBaseURL,
		ShortCode:          cfg.ShortCode,
		StoreNumber:        cfg.StoreNumber,
		TillNumber:         cfg.TillNumber,
		Passkey:            cfg.Passkey,
		InitiatorName:      cfg.InitiatorName,
		SecurityCredential: cfg.SecurityCredential,
		CallbackBaseURL:    cfg.CallbackBaseURL,
		AccountReference:   cfg.AccountReference,
		TransactionDesc:    cfg.TransactionDesc,
	}, tokens, httpClient, log)

	provider := airtime.NewClient(cfg.AirtimeBaseURL, cfg.AirtimeKey, cfg.AirtimeSecret, httpClient, log)

	threshold, err := decimal.NewFromString(cfg.RewardThreshold)
	if err != nil {
		log.Error("bad REWARD_MIN_AMOUNT", "value", cfg.RewardThreshold, "err", err)
		os.Exit(1)
	}

	rewardSvc := services.NewRewardService(provider, wp, repos.Audit, threshold, log)
	ledgerSvc := services.NewLedgerService(repos.Ledger, repos.Audit, rewardSvc, log)
	paymentSvc := services.NewPaymentService(gateway, ledgerSvc, cfg.PollInterval, cfg.PollMaxAttempts, log)
	reconcileSvc := services.NewReconcileService(gateway, ledgerSvc, repos.Ledger, log)
	balanceSvc := services.NewBalanceService(repos.Balances, gateway, provider, log)

	hub := stream.NewHub()
	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 0)

	r := api.NewRouter(api.RouterDeps{
		Cfg: cfg,
		TM:  tm,
		Payments: &handlers.PaymentHandler{
			Payments: paymentSvc,
			Log:      log,
		},
		Callbacks: &handlers.CallbackHandler{
			Ledger:   ledgerSvc,
			Balances: balanceSvc,
			Hub:      hub,
			Log:      log,
		},
		Admin: &handlers.AdminHandler{
			Cfg:       cfg,
			TM:        tm,
			Ledger:    ledgerSvc,
			Balances:  balanceSvc,
			Reconcile: reconcileSvc,
			Gateway:   gateway,
			Hub:       hub,
			Log:       log,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
