package wallet

import (
	"context"
	"time"

	"payledger/internal/config"
	"payledger/internal/models"

	"github.com/shopspring/decimal"
)

// Target identifies the wallet an operation applies to and the transaction
// it is made for, if any.
type Target struct {
	OwnerID       uint
	Currency      string
	TransactionID *string
	Description   string
}

// ForTransaction targets the wallet of tx.
func ForTransaction(tx *models.Transaction) Target {
	id := tx.ID
	return Target{OwnerID: tx.OwnerID, Currency: tx.Currency, TransactionID: &id}
}

// WalletConfig holds configuration for wallet operations
type WalletConfig struct {
	DefaultLimits       config.WalletLimits
	SupportedCurrencies []string
	ConflictRetries     int
	ConflictBackoff     time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Reconstruction compares the balances replayed from the audit trail with
// the stored ones.
type Reconstruction struct {
	Wallet    *models.Wallet
	Entries   int
	Available decimal.Decimal
	Pending   decimal.Decimal
	Reserved  decimal.Decimal
}

// Matches reports whether the replay reproduces the stored balances exactly.
func (r *Reconstruction) Matches() bool {
	return r.Available.Equal(r.Wallet.Available) &&
		r.Pending.Equal(r.Wallet.Pending) &&
		r.Reserved.Equal(r.Wallet.Reserved)
}

// MetricsCollector defines the interface for collecting wallet metrics
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)
	RecordCacheHit(operation string)
	RecordCacheMiss(operation string)
	RecordConflict(operation string)
}

// BalanceCache is the cache in front of wallet balances. It is filled on
// reads and written through after every mutation.
type BalanceCache interface {
	GetBalance(ctx context.Context, ownerID uint, currency string) (*models.Balance, error)
	// CacheBalance stores balance unless the cache already holds the same or
	// a newer version of the wallet.
	CacheBalance(ctx context.Context, balance models.Balance) error
	InvalidateBalance(ctx context.Context, ownerID uint, currency string) error
}
