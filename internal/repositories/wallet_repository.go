package repositories

import (
	"context"
	"errors"

	"payledger/internal/models"
)

var (
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate means a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")
)

// WalletRepository defines the interface for wallet-related database operations
type WalletRepository interface {
	// Create inserts a new wallet. A second wallet for the same owner and
	// currency yields ErrDuplicate.
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Wallet, error)

	// UpdateWithVersion writes wallet only if the stored version still equals
	// expectedVersion, and records entry in the same database transaction.
	// wallet.Version must already hold the next version.
	UpdateWithVersion(ctx context.Context, wallet *models.Wallet, expectedVersion uint, entry *models.WalletEntry) error

	// ListEntries returns the audit trail of a wallet in version order.
	ListEntries(ctx context.Context, walletID uint) ([]models.WalletEntry, error)
}
