// Package app wires the ledger's dependencies for the binaries.
package app

import (
	"errors"
	"fmt"

	"payledger/internal/config"
	"payledger/internal/metrics"
	"payledger/internal/repositories"
	"payledger/internal/repositories/cache"
	"payledger/internal/services/events"
	"payledger/internal/services/payment"
	"payledger/internal/services/provider"
	"payledger/internal/services/provider/sandbox"
	"payledger/internal/services/provider/stripe"
	"payledger/internal/services/risk"
	"payledger/internal/services/transaction"
	"payledger/internal/services/wallet"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    *cache.CacheService
	Metrics  *metrics.Collector
	Wallets  wallet.Service
	Ledger   transaction.Ledger
	Gateways *provider.Registry
	Payments payment.Service

	closers []func() error
}

// New connects to postgres and redis and builds the services. Close releases
// what New opened.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := repositories.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: metrics.NewCollector(),
	}
	a.closers = append(a.closers, func() error { return repositories.Close(db) })

	a.Redis = cache.NewRedisClient(cfg.Redis)
	a.Cache = cache.NewCacheService(a.Redis, cfg.Redis.BalanceTTL)
	a.closers = append(a.closers, a.Cache.Close)

	policy := cfg.Policy
	a.Wallets = wallet.NewService(
		repositories.NewWalletRepository(db),
		a.Cache,
		wallet.WalletConfig{
			DefaultLimits:       policy.DefaultLimits,
			SupportedCurrencies: policy.SupportedCurrencies,
			ConflictRetries:     policy.ConflictRetries,
			ConflictBackoff:     policy.ConflictBackoff,
		},
		a.Metrics.Wallets(),
		logger,
	)
	a.Ledger = transaction.NewLedger(
		repositories.NewTransactionRepository(db),
		transaction.LedgerConfig{
			MaxAttempts:     policy.MaxAttempts,
			ConflictRetries: policy.ConflictRetries,
			ConflictBackoff: policy.ConflictBackoff,
		},
		a.Metrics.Ledger(),
		logger,
	)

	a.Gateways = provider.NewRegistry()
	if cfg.StripeSecretKey != "" {
		a.Gateways.Register(stripe.New(cfg.StripeSecretKey, logger))
	}
	if cfg.SandboxEnabled {
		a.Gateways.Register(sandbox.New())
	}
	if len(a.Gateways.Providers()) == 0 {
		_ = a.Close()
		return nil, errors.New("no payment provider configured: set STRIPE_SECRET_KEY or SANDBOX_ENABLED")
	}

	publishers := events.Multi{events.NewRedisPublisher(a.Redis, cfg.Redis.EventsChannel, logger)}
	if cfg.Kafka.Enabled() {
		kp := events.NewKafkaPublisher(cfg.Kafka, logger)
		publishers = append(publishers, kp)
		a.closers = append(a.closers, kp.Close)
	}

	a.Payments = payment.NewService(payment.Dependencies{
		Wallets:  a.Wallets,
		Ledger:   a.Ledger,
		Gateways: a.Gateways,
		Risk:     risk.NewRuleScorer(riskRules(policy)),
		Events:   publishers,
		Metrics:  a.Metrics.Payments(),
		Logger:   logger,
	}, payment.Config{
		MaxAttempts:         policy.MaxAttempts,
		ProcessingTimeout:   policy.ProcessingTimeout,
		RiskBlockThreshold:  policy.RiskBlockThreshold,
		SupportedCurrencies: policy.SupportedCurrencies,
	})

	logger.Info("ledger services ready",
		zap.Any("providers", a.Gateways.Providers()),
		zap.Bool("kafka", cfg.Kafka.Enabled()),
		zap.Strings("currencies", policy.SupportedCurrencies))
	return a, nil
}

func riskRules(p config.PolicyConfig) risk.Rules {
	return risk.Rules{
		LargeAmount:     p.RiskLargeAmount,
		VeryLargeAmount: p.RiskVeryLargeAmount,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close resources: %w", err)
	}
	return nil
}
