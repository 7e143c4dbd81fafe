package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Lock      LockConfig      `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Kafka     KafkaConfig     `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type LockConfig struct {
	Backend       string        `mapstructure:"LOCK_BACKEND"`
	TTL           time.Duration `mapstructure:"LOCK_TTL"`
	RetryInterval time.Duration `mapstructure:"LOCK_RETRY_INTERVAL"`
	Wait          time.Duration `mapstructure:"LOCK_WAIT"`
}

type SchedulerConfig struct {
	ReconcileCron string `mapstructure:"SCHEDULER_RECONCILE_CRON"`
	Timezone      string `mapstructure:"SCHEDULER_TIMEZONE"`
	// MetricsPort serves the scheduler's /metrics; empty disables it.
	MetricsPort   string `mapstructure:"SCHEDULER_METRICS_PORT"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DefaultInterestRate string `mapstructure:"DEFAULT_INTEREST_RATE"`
	WeeksPerYear        int    `mapstructure:"WEEKS_PER_YEAR"`
	RatePercentScale    int    `mapstructure:"RATE_PERCENT_SCALE"`

	LabelRequested    string `mapstructure:"LABEL_STATUS_REQUESTED"`
	LabelApproved     string `mapstructure:"LABEL_STATUS_APPROVED"`
	LabelRejected     string `mapstructure:"LABEL_STATUS_REJECTED"`
	LabelCompleted    string `mapstructure:"LABEL_STATUS_COMPLETED"`
	LabelNotCompleted string `mapstructure:"LABEL_LOAN_NOT_COMPLETED"`
	LabelLoanComplete string `mapstructure:"LABEL_LOAN_COMPLETED"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTExpiration time.Duration `mapstructure:"JWT_EXPIRATION"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"KAFKA_BROKERS"`
	Topic   string `mapstructure:"KAFKA_TOPIC"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"ENV":                        "development",
	"DATABASE_DRIVER":            "postgres",
	"DATABASE_URL":               "",
	"DATABASE_HOST":              "localhost",
	"DATABASE_PORT":              "5432",
	"DATABASE_NAME":              "loan_ledger",
	"DATABASE_USER":              "postgres",
	"DATABASE_PASSWORD":          "",
	"DATABASE_SSLMODE":           "disable",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"DATABASE_AUTO_MIGRATE":      false,
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"LOCK_BACKEND":               "local",
	"LOCK_TTL":                   "10s",
	"LOCK_RETRY_INTERVAL":        "25ms",
	"LOCK_WAIT":                  "5s",
	"SCHEDULER_RECONCILE_CRON":   "0 0 1 * * *",
	"SCHEDULER_TIMEZONE":         "Asia/Jakarta",
	"SCHEDULER_METRICS_PORT":     "9091",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"DEFAULT_INTEREST_RATE":      "10",
	"WEEKS_PER_YEAR":             52,
	"RATE_PERCENT_SCALE":         100,
	"LABEL_STATUS_REQUESTED":     "Requested",
	"LABEL_STATUS_APPROVED":      "Approved",
	"LABEL_STATUS_REJECTED":      "Rejected",
	"LABEL_STATUS_COMPLETED":     "Completed",
	"LABEL_LOAN_NOT_COMPLETED":   "Not Completed",
	"LABEL_LOAN_COMPLETED":       "Completed",
	"JWT_SECRET":                 "",
	"JWT_ISSUER":                 "loan-ledger",
	"JWT_EXPIRATION":             "24h",
	"KAFKA_BROKERS":              "",
	"KAFKA_TOPIC":                "loan-events",
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// Every key needs a default so that AutomaticEnv can bind it on Unmarshal
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres":
	case "sqlite3":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for sqlite3")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.Database.Driver)
	}

	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("LOCK_BACKEND must be local or redis, got %q", c.Lock.Backend)
	}

	if c.Business.WeeksPerYear <= 0 {
		return fmt.Errorf("WEEKS_PER_YEAR must be greater than 0")
	}

	if c.Business.RatePercentScale <= 0 {
		return fmt.Errorf("RATE_PERCENT_SCALE must be greater than 0")
	}

	// Validate interest rate
	rate, err := utils.ParseAmount(c.Business.DefaultInterestRate)
	if err != nil {
		return fmt.Errorf("DEFAULT_INTEREST_RATE must be a valid decimal: %w", err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("DEFAULT_INTEREST_RATE must not be negative")
	}
	if !domain.HasRatePrecision(rate) {
		return fmt.Errorf("DEFAULT_INTEREST_RATE must have at most %d decimal places", domain.RatePlaces)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetDefaultInterestRate returns the default interest rate as decimal
func (c *Config) GetDefaultInterestRate() decimal.Decimal {
	rate, _ := utils.ParseAmount(c.Business.DefaultInterestRate)
	return rate
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// GetSchedulerLocation returns the scheduler time zone
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetKafkaBrokers splits KAFKA_BROKERS on commas; empty when unset
func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.Kafka.Brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Labels returns the presentation labels for loan states
func (c *Config) Labels() domain.Labels {
	return domain.Labels{
		Status: map[domain.LoanStatus]string{
			domain.LoanStatusRequested: c.Business.LabelRequested,
			domain.LoanStatusApproved:  c.Business.LabelApproved,
			domain.LoanStatusRejected:  c.Business.LabelRejected,
			domain.LoanStatusCompleted: c.Business.LabelCompleted,
		},
		Completion: map[bool]string{
			false: c.Business.LabelNotCompleted,
			true:  c.Business.LabelLoanComplete,
		},
	}
}

// DSN returns the database connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}
