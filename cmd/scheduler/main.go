package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/reconcile"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	// Until the configured logger exists, failures go to stderr
	boot := logger.Bootstrap()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		boot.Fatal("Failed to build logger", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		log = log.WithOptions(zap.Development())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting ledger scheduler...")

	db, err := database.Open(context.Background(), database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	m := metrics.New(prometheus.NewRegistry())
	reconciler := reconcile.NewReconciler(
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		m,
		log,
	)

	// The discrepancy gauge lives in this process, so it is scraped here
	var metricsServer *http.Server
	if cfg.Scheduler.MetricsPort != "" {
		metricsServer = newMetricsServer(cfg.Server.Host+":"+cfg.Scheduler.MetricsPort, m)
		go func() {
			log.Info("Scheduler metrics listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Scheduler metrics server failed", zap.Error(err))
			}
		}()
	}

	// Initialize cron scheduler
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.GetSchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	// Schedule tasks
	if err := setupCronJobs(c, cfg, reconciler, log); err != nil {
		log.Fatal("Error scheduling jobs", zap.Error(err))
	}

	// Start the scheduler
	c.Start()
	log.Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error("Scheduler metrics server forced to shutdown", zap.Error(err))
		}
	}
	log.Info("Scheduler stopped")
}

func newMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func reconcileJob(reconciler *reconcile.Reconciler, log *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		log.Info("Running ledger reconciliation job...")
		found, err := reconciler.Run(ctx)
		if err != nil {
			log.Error("Ledger reconciliation failed", zap.Error(err))
			return
		}
		log.Info("Ledger reconciliation finished", zap.Int("discrepancies", len(found)))
	}
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, reconciler *reconcile.Reconciler, log *zap.Logger) error {
	// Ledger reconciliation, daily by default
	_, err := c.AddFunc(cfg.Scheduler.ReconcileCron, reconcileJob(reconciler, log))
	if err != nil {
		return err
	}

	log.Info("Cron jobs scheduled successfully", zap.String("reconcile", cfg.Scheduler.ReconcileCron))
	return nil
}
