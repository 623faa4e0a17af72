package wallet

import (
	"context"
	"time"

	"payledger/internal/models"

	"github.com/shopspring/decimal"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet lookup
	GetOrCreate(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error)
	Get(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error)
	GetBalance(ctx context.Context, ownerID uint, currency string) (models.Balance, error)

	// Balance operations. Each returns the wallet as written.
	Debit(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	Credit(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	Reserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	// Hold reserves funds without the spend limit guard.
	Hold(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	ReleaseReserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	// ReleaseAttempt releases a hold placed by Reserve at spentAt and
	// reverses the spend recorded for it.
	ReleaseAttempt(ctx context.Context, t Target, amount decimal.Decimal, spentAt time.Time) (*models.Wallet, error)
	ConsumeReserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	AddPending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	RemovePending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)
	ConfirmPending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error)

	// Wallet management
	SetStatus(ctx context.Context, ownerID uint, currency string, status models.WalletStatus, reason string) (*models.Wallet, error)
	History(ctx context.Context, ownerID uint, currency string) ([]models.WalletEntry, error)
	Reconstruct(ctx context.Context, ownerID uint, currency string) (*Reconstruction, error)
}
