package payment

import (
	"context"
	"time"

	"payledger/internal/models"
	"payledger/internal/services/provider"
	"payledger/internal/services/wallet"

	"github.com/shopspring/decimal"
)

// Service drives payments, refunds and retries through the ledger.
type Service interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*models.Transaction, error)
	RetryPayment(ctx context.Context, transactionID string) (*models.Transaction, error)
	ProcessRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (*models.Transaction, error)
	GetWalletBalance(ctx context.Context, ownerID uint, currency string) (models.Balance, error)

	CapturePayment(ctx context.Context, transactionID string) (*models.Transaction, error)
	CancelPayment(ctx context.Context, transactionID string) (*models.Transaction, error)
	OpenDispute(ctx context.Context, transactionID, reason string) (*models.Transaction, error)

	// HandleProviderOutcome applies an asynchronous provider result, such as
	// a webhook. Deliveries for transactions that already settled are no-ops.
	HandleProviderOutcome(ctx context.Context, n Notification) (*models.Transaction, error)
	// SweepExpired expires transactions in flight for longer than the
	// processing timeout and returns how many were expired.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Dependencies required by the payment service
type WalletService interface {
	GetOrCreate(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error)
	GetBalance(ctx context.Context, ownerID uint, currency string) (models.Balance, error)
	Credit(ctx context.Context, t wallet.Target, amount decimal.Decimal) (*models.Wallet, error)
	Reserve(ctx context.Context, t wallet.Target, amount decimal.Decimal) (*models.Wallet, error)
	Hold(ctx context.Context, t wallet.Target, amount decimal.Decimal) (*models.Wallet, error)
	ReleaseReserve(ctx context.Context, t wallet.Target, amount decimal.Decimal) (*models.Wallet, error)
	ReleaseAttempt(ctx context.Context, t wallet.Target, amount decimal.Decimal, spentAt time.Time) (*models.Wallet, error)
	ConsumeReserve(ctx context.Context, t wallet.Target, amount decimal.Decimal) (*models.Wallet, error)
}

type TransactionLedger interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	Get(ctx context.Context, id string) (*models.Transaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	GetByProviderRef(ctx context.Context, p models.Provider, ref string) (*models.Transaction, error)
	Transition(ctx context.Context, id string, to models.TransactionStatus, apply func(*models.Transaction) error) (*models.Transaction, error)
	Update(ctx context.Context, id string, apply func(*models.Transaction) error) (*models.Transaction, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error)
}

type GatewayRegistry interface {
	Get(p models.Provider) (provider.Gateway, error)
}
