package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/handler"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/service"
	"github.com/segyhp/loan-ledger/pkg/auth"
	"github.com/segyhp/loan-ledger/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
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

	ctx := context.Background()

	// Initialize database
	db, err := initDB(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Redis is only dialled when it backs the loan locks
	var redisClient *redis.Client
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Lock.Backend == "redis" {
		redisClient = initRedis(cfg)
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval)
	}

	publisher := initPublisher(cfg, log)
	defer publisher.Close()

	m := metrics.New(prometheus.NewRegistry())

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Initialize service
	policy := service.Policy{
		DefaultAnnualRate: cfg.GetDefaultInterestRate(),
		Calculator:        amortization.NewCalculator(cfg.Business.WeeksPerYear, cfg.Business.RatePercentScale),
		Labels:            cfg.Labels(),
	}
	loanService := service.NewLoanService(loanRepo, paymentRepo, locker, policy,
		service.WithPublisher(publisher),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithLockWait(cfg.Lock.Wait),
	)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		Expiration: cfg.Auth.JWTExpiration,
	})
	if err != nil {
		log.Fatal("Failed to initialize JWT service", zap.Error(err))
	}

	loanHandler := handler.NewLoanHandler(loanService)
	var healthRedis redis.Cmdable
	if redisClient != nil {
		healthRedis = redisClient
	}
	healthHandler := handler.NewHealthHandler(db, healthRedis, cfg.GetHealthTimeout())

	// Setup routes
	router := handler.NewRouter(loanHandler, healthHandler, jwtService, m, log)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited")
}

func initDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	return database.Open(ctx, database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func initPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return events.NewLogPublisher(log)
	}
	log.Info("Publishing loan events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
	return events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
}
