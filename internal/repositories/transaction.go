package repositories

import (
	"context"
	"time"

	"payledger/internal/models"
)

// TransactionRepository persists transactions.
type TransactionRepository interface {
	// Create inserts a transaction. An existing external transaction id
	// yields ErrDuplicate.
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	GetByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Transaction, error)

	// UpdateWithVersion writes tx only if the stored version still equals
	// expectedVersion. tx.Version must already hold the next version.
	UpdateWithVersion(ctx context.Context, tx *models.Transaction, expectedVersion uint) error

	// ListStale returns transactions in one of statuses last touched before cutoff.
	ListStale(ctx context.Context, statuses []models.TransactionStatus, cutoff time.Time, limit int) ([]*models.Transaction, error)
	// ListChildren returns transactions whose parent is parentID, oldest first.
	ListChildren(ctx context.Context, parentID string) ([]*models.Transaction, error)
}
