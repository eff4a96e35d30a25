package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func init() {
	// Load .env file - ignore error if file doesn't exist
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Note: .env file not found or could not be loaded: %v\n", err)
	}
}

type Config struct {
	Primary       PrimaryConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Observability *ObservabilityConfig
	Xendit        XenditConfig
	Auth          AuthConfig
	Ledger        LedgerConfig
	Checkout      CheckoutConfig
	Notification  NotificationConfig
	Scheduler     SchedulerConfig
}

type PrimaryConfig struct {
	Env string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	MigrationsPath  string
}

type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	IdleTimeout        int
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
	KeyPrefix    string
}

type KafkaConfig struct {
	Brokers          []string
	OutboxBatchSize  int
	OutboxInterval   time.Duration
	OutboxMaxRetries int
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	Logging      LoggingConfig
	NewRelic     NewRelicConfig
	HealthChecks HealthChecksConfig
}

type LoggingConfig struct {
	Level              string
	Format             string
	SlowQueryThreshold time.Duration
}

type NewRelicConfig struct {
	LicenseKey                string
	AppLogForwardingEnabled   bool
	DistributedTracingEnabled bool
	DebugLogging              bool
}

type HealthChecksConfig struct {
	Enabled bool
	Timeout time.Duration
	Checks  []string
}

type XenditConfig struct {
	SecretKey       string
	CallbackToken   string
	BaseURL         string
	Timeout         time.Duration
	InvoiceDuration time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	CronSecret string
}

// LedgerConfig holds the money rules of the commission program.
type LedgerConfig struct {
	DefaultCommissionRate decimal.Decimal
	MaxCommissionRate     decimal.Decimal
	MembershipRate        decimal.Decimal
	ProductRate           decimal.Decimal
	CourseRate            decimal.Decimal
	CommissionHoldDays    int
	MinPayout             int64
	PayoutAdminFee        int64
	PinRequired           bool
	AdminUserID           string
	FounderUserID         string
	CofounderUserID       string
	// ItemCommissions is keyed by "TYPE:itemID".
	ItemCommissions map[string]ItemCommissionConfig
}

// ItemCommissionConfig is the commission an admin configured on one catalog item.
type ItemCommissionConfig struct {
	Type  string
	Value decimal.Decimal
}

type CheckoutConfig struct {
	AppURL             string
	ReferralCookieName string
	ReferralCookieTTL  time.Duration
	IdempotencyTTL     time.Duration
}

type NotificationConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SchedulerConfig struct {
	MaturationInterval time.Duration
	ReminderInterval   time.Duration
	ExpiryInterval     time.Duration
	ReminderAfter      []time.Duration
	BatchSize          int
}

// Helper functions for parsing env vars
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDurations(key string, fallback []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []time.Duration
	for _, part := range strings.Split(value, ",") {
		if d, err := time.ParseDuration(strings.TrimSpace(part)); err == nil {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvItemCommissions parses "PRODUCT:ebook-1=FLAT:50000,MEMBERSHIP:gold=PERCENTAGE:25".
// Malformed entries are skipped.
func getEnvItemCommissions(key string) map[string]ItemCommissionConfig {
	out := map[string]ItemCommissionConfig{}
	value := os.Getenv(key)
	if value == "" {
		return out
	}
	for _, part := range strings.Split(value, ",") {
		item, rule, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		typ, raw, ok := strings.Cut(rule, ":")
		if !ok || (typ != "FLAT" && typ != "PERCENTAGE") {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			continue
		}
		out[item] = ItemCommissionConfig{Type: typ, Value: v}
	}
	return out
}

func (c *ObservabilityConfig) GetLogLevel() string {
	if c.Logging.Level == "" {
		switch c.Environment {
		case "production":
			return "info"
		case "development":
			return "debug"
		default:
			return "info"
		}
	}
	return c.Logging.Level
}

func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Primary: PrimaryConfig{
			Env: getEnv("LEDGER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("LEDGER_DB_HOST", "localhost"),
			Port:            getEnvInt("LEDGER_DB_PORT", 5432),
			User:            getEnv("LEDGER_DB_USER", "ledger"),
			Password:        getEnv("LEDGER_DB_PASSWORD", ""),
			Name:            getEnv("LEDGER_DB_NAME", "ledger"),
			SSLMode:         getEnv("LEDGER_DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("LEDGER_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("LEDGER_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("LEDGER_DB_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("LEDGER_DB_CONN_MAX_IDLE_TIME", 60),
			MigrationsPath:  getEnv("LEDGER_DB_MIGRATIONS_PATH", "file://internal/database/migrations"),
		},
		Server: ServerConfig{
			Port:               getEnv("LEDGER_SERVER_PORT", "8080"),
			ReadTimeout:        getEnvInt("LEDGER_SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("LEDGER_SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("LEDGER_SERVER_IDLE_TIMEOUT", 60),
			CORSAllowedOrigins: getEnvSlice("LEDGER_SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Address:      getEnv("LEDGER_REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnv("LEDGER_REDIS_PASSWORD", ""),
			DB:           getEnvInt("LEDGER_REDIS_DB", 0),
			PoolSize:     getEnvInt("LEDGER_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("LEDGER_REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvDuration("LEDGER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("LEDGER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("LEDGER_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("LEDGER_REDIS_LOCK_TTL", 30*time.Second),
			KeyPrefix:    getEnv("LEDGER_REDIS_KEY_PREFIX", "ledger:"),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvSlice("LEDGER_KAFKA_BROKERS", []string{"localhost:9092"}),
			OutboxBatchSize:  getEnvInt("LEDGER_OUTBOX_BATCH_SIZE", 100),
			OutboxInterval:   getEnvDuration("LEDGER_OUTBOX_INTERVAL", time.Second),
			OutboxMaxRetries: getEnvInt("LEDGER_OUTBOX_MAX_RETRIES", 10),
		},
		Observability: &ObservabilityConfig{
			ServiceName: "affiliate-ledger",
			Environment: getEnv("LEDGER_ENV", "development"),
			Logging: LoggingConfig{
				Level:              getEnv("LEDGER_LOG_LEVEL", "debug"),
				Format:             getEnv("LEDGER_LOG_FORMAT", "console"),
				SlowQueryThreshold: getEnvDuration("LEDGER_LOG_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			},
			NewRelic: NewRelicConfig{
				LicenseKey:                getEnv("LEDGER_NEWRELIC_LICENSE_KEY", ""),
				AppLogForwardingEnabled:   getEnvBool("LEDGER_NEWRELIC_LOG_FORWARDING", true),
				DistributedTracingEnabled: getEnvBool("LEDGER_NEWRELIC_DISTRIBUTED_TRACING", true),
				DebugLogging:              getEnvBool("LEDGER_NEWRELIC_DEBUG", false),
			},
			HealthChecks: HealthChecksConfig{
				Enabled: getEnvBool("LEDGER_HEALTHCHECK_ENABLED", true),
				Timeout: getEnvDuration("LEDGER_HEALTHCHECK_TIMEOUT", 5*time.Second),
				Checks:  getEnvSlice("LEDGER_HEALTHCHECK_CHECKS", []string{"database", "redis"}),
			},
		},
		Xendit: XenditConfig{
			SecretKey:       getEnv("LEDGER_XENDIT_SECRET_KEY", ""),
			CallbackToken:   getEnv("LEDGER_XENDIT_CALLBACK_TOKEN", ""),
			BaseURL:         getEnv("LEDGER_XENDIT_BASE_URL", "https://api.xendit.co"),
			Timeout:         getEnvDuration("LEDGER_XENDIT_TIMEOUT", 10*time.Second),
			InvoiceDuration: getEnvDuration("LEDGER_XENDIT_INVOICE_DURATION", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("LEDGER_AUTH_JWT_SECRET", ""),
			JWTIssuer:  getEnv("LEDGER_AUTH_JWT_ISSUER", ""),
			CronSecret: getEnv("LEDGER_CRON_SECRET", ""),
		},
		Ledger: LedgerConfig{
			DefaultCommissionRate: getEnvDecimal("LEDGER_COMMISSION_DEFAULT_RATE", decimal.NewFromInt(10)),
			MaxCommissionRate:     getEnvDecimal("LEDGER_COMMISSION_MAX_RATE", decimal.NewFromInt(30)),
			MembershipRate:        getEnvDecimal("LEDGER_COMMISSION_MEMBERSHIP_RATE", decimal.NewFromInt(30)),
			ProductRate:           getEnvDecimal("LEDGER_COMMISSION_PRODUCT_RATE", decimal.NewFromInt(10)),
			CourseRate:            getEnvDecimal("LEDGER_COMMISSION_COURSE_RATE", decimal.NewFromInt(10)),
			CommissionHoldDays:    getEnvInt("LEDGER_COMMISSION_HOLD_DAYS", 7),
			MinPayout:             getEnvInt64("LEDGER_MIN_PAYOUT", 50000),
			PayoutAdminFee:        getEnvInt64("LEDGER_PAYOUT_ADMIN_FEE", 5000),
			PinRequired:           getEnvBool("LEDGER_PAYOUT_PIN_REQUIRED", true),
			AdminUserID:           getEnv("LEDGER_REVENUE_ADMIN_USER_ID", ""),
			FounderUserID:         getEnv("LEDGER_REVENUE_FOUNDER_USER_ID", ""),
			CofounderUserID:       getEnv("LEDGER_REVENUE_COFOUNDER_USER_ID", ""),
			ItemCommissions:       getEnvItemCommissions("LEDGER_ITEM_COMMISSIONS"),
		},
		Checkout: CheckoutConfig{
			AppURL:             strings.TrimRight(getEnv("LEDGER_APP_URL", "http://localhost:3000"), "/"),
			ReferralCookieName: getEnv("LEDGER_REFERRAL_COOKIE", "affiliate_ref"),
			ReferralCookieTTL:  getEnvDuration("LEDGER_REFERRAL_COOKIE_TTL", 30*24*time.Hour),
			IdempotencyTTL:     getEnvDuration("LEDGER_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Notification: NotificationConfig{
			BaseURL: getEnv("LEDGER_NOTIFY_URL", ""),
			APIKey:  getEnv("LEDGER_NOTIFY_API_KEY", ""),
			Timeout: getEnvDuration("LEDGER_NOTIFY_TIMEOUT", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			MaturationInterval: getEnvDuration("LEDGER_SCHEDULER_MATURATION_INTERVAL", 15*time.Minute),
			ReminderInterval:   getEnvDuration("LEDGER_SCHEDULER_REMINDER_INTERVAL", 10*time.Minute),
			ExpiryInterval:     getEnvDuration("LEDGER_SCHEDULER_EXPIRY_INTERVAL", 30*time.Minute),
			ReminderAfter:      getEnvDurations("LEDGER_REMINDER_AFTER", []time.Duration{time.Hour, 6 * time.Hour, 20 * time.Hour}),
			BatchSize:          getEnvInt("LEDGER_SCHEDULER_BATCH_SIZE", 200),
		},
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("LEDGER_DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("LEDGER_DB_NAME is required")
	}
	if cfg.Ledger.DefaultCommissionRate.GreaterThan(cfg.Ledger.MaxCommissionRate) {
		return nil, fmt.Errorf("LEDGER_COMMISSION_DEFAULT_RATE exceeds LEDGER_COMMISSION_MAX_RATE")
	}
	if cfg.Ledger.MinPayout <= cfg.Ledger.PayoutAdminFee {
		return nil, fmt.Errorf("LEDGER_MIN_PAYOUT must be greater than LEDGER_PAYOUT_ADMIN_FEE")
	}
	if cfg.Observability.IsProduction() && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("LEDGER_AUTH_JWT_SECRET is required in production")
	}

	return cfg, nil
}
