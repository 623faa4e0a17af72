package payment

import (
	"time"

	"payledger/internal/models"
	"payledger/internal/services/events"
	"payledger/internal/services/provider"
	"payledger/internal/services/risk"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentRequest is the input to ProcessPayment.
type PaymentRequest struct {
	OwnerID               uint
	Amount                decimal.Decimal
	Currency              string
	Provider              models.Provider
	Method                models.PaymentMethod
	ExternalTransactionID string
	// Idempotent makes a repeated request with the same payload return the
	// stored transaction instead of ErrDuplicateTransaction.
	Idempotent bool
	// Type defaults to PAYMENT.
	Type     models.TransactionType
	Metadata models.ProviderMetadata
}

func (r PaymentRequest) transaction() *models.Transaction {
	return &models.Transaction{
		ExternalTransactionID: r.ExternalTransactionID,
		OwnerID:               r.OwnerID,
		Amount:                r.Amount,
		Currency:              r.Currency,
		Provider:              r.Provider,
		PaymentMethod:         r.Method,
		Type:                  r.Type,
		Metadata:              r.Metadata,
	}
}

// Notification is an asynchronous outcome reported by a provider. Either
// TransactionID or ProviderRef identifies the transaction.
type Notification struct {
	Provider      models.Provider
	TransactionID string
	ProviderRef   string
	// Attempt is the 1-based attempt the outcome is for, zero when the
	// provider does not echo it.
	Attempt       int
	Outcome       provider.Outcome
}

// Config holds the orchestration policy.
type Config struct {
	MaxAttempts         int
	ProcessingTimeout   time.Duration
	RiskBlockThreshold  float64
	SupportedCurrencies []string
	SweepBatchSize      int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// MetricsCollector receives orchestration metrics.
type MetricsCollector interface {
	RecordOutcome(txType, status string)
	RecordRiskScore(score float64)
	RecordInconsistency(operation string)
	RecordPublishFailure(eventType string)
	RecordExpired(count int)
}

type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOutcome(string, string) {}
func (NoopMetricsCollector) RecordRiskScore(float64) {}
func (NoopMetricsCollector) RecordInconsistency(string) {}
func (NoopMetricsCollector) RecordPublishFailure(string) {}
func (NoopMetricsCollector) RecordExpired(int) {}

// Dependencies wires the orchestrator. Wallets, Ledger and Gateways are
// required.
type Dependencies struct {
	Wallets  WalletService
	Ledger   TransactionLedger
	Gateways GatewayRegistry
	Risk     risk.Scorer
	Events   events.Publisher
	Metrics  MetricsCollector
	Logger   *zap.Logger
}
