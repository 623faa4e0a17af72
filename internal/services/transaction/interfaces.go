package transaction

import (
	"context"
	"time"

	"payledger/internal/models"
)

// Ledger owns transaction records and their status changes.
type Ledger interface {
	// Create stores tx as PENDING. If the external transaction id is
	// already taken it returns the stored transaction together with
	// ErrDuplicateTransaction.
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)

	Get(ctx context.Context, id string) (*models.Transaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	GetByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Transaction, error)

	// Transition moves a transaction to status to. apply, if set, runs on the
	// new state before it is written and may veto the write by returning an
	// error. A transaction that has already settled yields ErrAlreadySettled.
	Transition(ctx context.Context, id string, to models.TransactionStatus, apply func(*models.Transaction) error) (*models.Transaction, error)

	// Update changes non-status fields through the same versioned write.
	Update(ctx context.Context, id string, apply func(*models.Transaction) error) (*models.Transaction, error)

	// ListStale returns PENDING and PROCESSING transactions not touched since cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error)
	Children(ctx context.Context, parentID string) ([]*models.Transaction, error)
}
