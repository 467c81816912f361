package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/streampay/internal/app"
	"github.com/cesargomez89/streampay/internal/chain"
	"github.com/cesargomez89/streampay/internal/config"
	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	httpapp "github.com/cesargomez89/streampay/internal/http"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/metrics"
	"github.com/cesargomez89/streampay/internal/scheduler"
	"github.com/cesargomez89/streampay/internal/store"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	defer db.Close()

	settingsRepo := store.NewSettingsRepo(db)
	ledger := app.NewLedgerService(db, appLogger)
	if err := ledger.RecoverRuns(context.Background()); err != nil {
		appLogger.Error("Failed to recover aggregation runs", "error", err)
	}

	// Signing key is parsed once and only ever held by the chain client.
	key, err := chain.ParsePrivateKey(cfg.PrivateKey.Reveal())
	if err != nil {
		appLogger.Error("Invalid platform signing key", "error", err)
		os.Exit(1)
	}
	client := chain.NewSolanaClient(cfg.RPCURL, key)
	appLogger.Info("Chain client ready", "cluster", cfg.Cluster, "funding_account", client.FundingAccount())

	// Initialize Services
	m := metrics.Default()
	aggregator := app.NewAggregator(db, appLogger,
		app.WithRate(domain.Lamports(cfg.RateLamports)),
		app.WithFeePercent(cfg.FeePercent),
		app.WithWindow(cfg.AggregationWindow),
		app.WithSettings(settingsRepo),
		app.WithAggregatorMetrics(m),
	)
	withdrawals := app.NewWithdrawalService(db, client, appLogger,
		app.WithCluster(cfg.Cluster),
		app.WithConfirmation(cfg.ConfirmTimeout, cfg.PollInterval),
		app.WithWithdrawalMetrics(m),
	)
	reconciler := app.NewReconciler(db, client, appLogger,
		app.WithReservationTTL(cfg.ReservationTTL),
		app.WithReconcilerMetrics(m),
	)
	limiter := httpapp.NewRateLimiter(cfg.WithdrawRateLimit, constants.DefaultWithdrawBurst, appLogger)

	// Initialize Scheduler
	sched := scheduler.New(constants.DefaultJobTimeout, appLogger)
	jobs := []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{"aggregate", cfg.AggregationSchedule, func(ctx context.Context) error {
			_, err := aggregator.RunDefault(ctx)
			return err
		}},
		{"reconcile", cfg.ReconcileSchedule, func(ctx context.Context) error {
			if err := settingsRepo.SetTime(ctx, store.SettingLastReconcileAt, time.Now()); err != nil {
				appLogger.Warn("Failed to record reconcile time", "error", err)
			}
			_, err := reconciler.Run(ctx)
			return err
		}},
		{"ratelimit-cleanup", "@every 10m", func(context.Context) error {
			limiter.Cleanup(time.Hour)
			return nil
		}},
	}
	for _, j := range jobs {
		if j.spec == "" {
			appLogger.Info("Job disabled", "job", j.name)
			continue
		}
		if err := sched.Register(j.name, j.spec, j.job); err != nil {
			appLogger.Error("Failed to register job", "job", j.name, "error", err)
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()
	for name, next := range sched.Next() {
		appLogger.Info("Job scheduled", "job", name, "next_run", next)
	}

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := httpapp.NewHandler(aggregator, withdrawals, reconciler, ledger, db, limiter)
	h.Logger = appLogger.WithComponent("http")
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
