package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/cache"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/database"
	"github.com/kaskelas/backend/internal/handlers"
	"github.com/kaskelas/backend/internal/logging"
	"github.com/kaskelas/backend/internal/metrics"
	"github.com/kaskelas/backend/internal/repository/postgres"
	"github.com/kaskelas/backend/internal/scheduler"
	"github.com/kaskelas/backend/internal/services"
	"github.com/kaskelas/backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title Kas Kelas Backend API
// @version 1.0
// @description Class treasury API: monthly dues, payment confirmation, fund applications and the class ledger
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logging.Setup()
	config.Init(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}
	var c services.Cache
	if redisClient != nil {
		c = cache.New(redisClient, m)
	}

	auditLog := audit.NewLogger(slog.Default())
	store := postgres.New(db)

	ledgerService := services.NewLedgerService(store, c, cfg.Cache, auditLog, m)
	paymentService := services.NewPaymentService(store, c, auditLog, m)
	generator := services.NewBillGenerator(store, c, cfg.Billing, auditLog, m)
	fundService := services.NewFundApplicationService(store, c, auditLog, m)
	dashboardService := services.NewDashboardService(store, ledgerService, c, cfg.Cache)
	accountService := services.NewPaymentAccountService(store, auditLog)

	var uploader handlers.Uploader
	if gcs := storage.NewGCSUploader(ctx, cfg.Storage); gcs != nil {
		defer gcs.Close()
		uploader = gcs
	} else {
		slog.Warn("file storage not configured, payment proof uploads are disabled")
	}

	r := handlers.NewRouter(handlers.Deps{
		Payments:  paymentService,
		Generator: generator,
		Funds:     fundService,
		Ledger:    ledgerService,
		Dashboard: dashboardService,
		Accounts:  accountService,
		Uploader:  uploader,
		Server:    cfg.Server,
		JWT:       cfg.JWT,
		Cron:      cfg.Cron,
		Gatherer:  registry,
		Ping:      db.PingContext,
	})

	billScheduler, err := scheduler.New(generator, cfg.Cron, cfg.Billing.Location)
	if err != nil {
		slog.Error("failed to create bill scheduler", "error", err)
		os.Exit(1)
	}
	billScheduler.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	billScheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
