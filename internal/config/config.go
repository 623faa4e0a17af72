package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a time.Duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetBoolEnv returns a bool environment variable or a default value.
func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// GetFloatEnv returns a float64 environment variable or a default value.
func GetFloatEnv(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// GetDecimalEnv returns a decimal environment variable or a default value.
func GetDecimalEnv(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetListEnv splits a comma separated environment variable.
func GetListEnv(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// EventsChannel is the pub/sub channel audit events are published on.
	EventsChannel string
	BalanceTTL    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether a Kafka publisher should be created.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// WalletLimits are applied to wallets created on first currency use.
type WalletLimits struct {
	MinimumBalance decimal.Decimal
	MaximumBalance decimal.Decimal
	DailyLimit     decimal.Decimal
	MonthlyLimit   decimal.Decimal
}

// PolicyConfig holds the ledger policy values.
type PolicyConfig struct {
	MaxAttempts         int
	ProcessingTimeout   time.Duration
	SweepInterval       time.Duration
	ConflictRetries     int
	ConflictBackoff     time.Duration
	RiskBlockThreshold  float64
	// Amounts above which the rule scorer raises the risk score.
	RiskLargeAmount     decimal.Decimal
	RiskVeryLargeAmount decimal.Decimal
	SupportedCurrencies []string
	DefaultLimits       WalletLimits
}

type Config struct {
	Env              string
	Port             string
	DB               DBConfig
	Redis            RedisConfig
	Kafka            KafkaConfig
	StripeSecretKey  string
	WebhookJWTSecret string
	// SandboxEnabled registers the scripted sandbox gateway.
	SandboxEnabled bool
	Policy         PolicyConfig
}

// Default policy values.
const (
	DefaultMaxAttempts        = 3
	DefaultProcessingTimeout  = 24 * time.Hour
	DefaultSweepInterval      = 5 * time.Minute
	DefaultConflictRetries    = 3
	DefaultConflictBackoff    = 25 * time.Millisecond
	DefaultRiskBlockThreshold = 0.8
)

var DefaultCurrencies = []string{"USD", "EUR", "GBP", "XAF", "NGN", "KES"}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Env:  GetEnv("ENV", "development"),
		Port: GetEnv("PORT", "3000"),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "payledger"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:          GetEnv("REDIS_HOST", "localhost"),
			Port:          GetEnv("REDIS_PORT", "6379"),
			Password:      GetEnv("REDIS_PASSWORD", ""),
			DB:            GetIntEnv("REDIS_DB", 0),
			EventsChannel: GetEnv("REDIS_EVENTS_CHANNEL", "ledger_events"),
			BalanceTTL:    GetDurationEnv("REDIS_BALANCE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: GetListEnv("KAFKA_BROKERS", nil),
			Topic:   GetEnv("KAFKA_TOPIC", "ledger.events"),
		},
		StripeSecretKey:  GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookJWTSecret: GetEnv("WEBHOOK_JWT_SECRET", ""),
		SandboxEnabled:   GetBoolEnv("SANDBOX_ENABLED", !IsProduction()),
		Policy: PolicyConfig{
			MaxAttempts:         GetIntEnv("LEDGER_MAX_ATTEMPTS", DefaultMaxAttempts),
			ProcessingTimeout:   GetDurationEnv("LEDGER_PROCESSING_TIMEOUT", DefaultProcessingTimeout),
			SweepInterval:       GetDurationEnv("LEDGER_SWEEP_INTERVAL", DefaultSweepInterval),
			ConflictRetries:     GetIntEnv("LEDGER_CONFLICT_RETRIES", DefaultConflictRetries),
			ConflictBackoff:     GetDurationEnv("LEDGER_CONFLICT_BACKOFF", DefaultConflictBackoff),
			RiskBlockThreshold:  GetFloatEnv("LEDGER_RISK_BLOCK_THRESHOLD", DefaultRiskBlockThreshold),
			RiskLargeAmount:     GetDecimalEnv("LEDGER_RISK_LARGE_AMOUNT", decimal.NewFromInt(10_000)),
			RiskVeryLargeAmount: GetDecimalEnv("LEDGER_RISK_VERY_LARGE_AMOUNT", decimal.NewFromInt(50_000)),
			SupportedCurrencies: GetListEnv("LEDGER_CURRENCIES", DefaultCurrencies),
			DefaultLimits: WalletLimits{
				MinimumBalance: GetDecimalEnv("WALLET_MIN_BALANCE", decimal.Zero),
				MaximumBalance: GetDecimalEnv("WALLET_MAX_BALANCE", decimal.NewFromInt(1_000_000)),
				DailyLimit:     GetDecimalEnv("WALLET_DAILY_LIMIT", decimal.NewFromInt(10_000)),
				MonthlyLimit:   GetDecimalEnv("WALLET_MONTHLY_LIMIT", decimal.NewFromInt(50_000)),
			},
		},
	}
}
