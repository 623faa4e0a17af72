package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"

	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) first(ctx context.Context, what string, query interface{}, args ...interface{}) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).Where(query, args...).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrTransactionNotFound, "%s", what)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.first(ctx, "id "+id, "id = ?", id)
}

func (r *transactionRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	return r.first(ctx, "external id "+externalID, "external_transaction_id = ?", externalID)
}

func (r *transactionRepository) GetByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Transaction, error) {
	return r.first(ctx, fmt.Sprintf("%s ref %s", provider, ref), "provider = ? AND provider_ref = ?", provider, ref)
}

func (r *transactionRepository) UpdateWithVersion(ctx context.Context, tx *models.Transaction, expectedVersion uint) error {
	res := r.db.WithContext(ctx).
		Model(tx).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(tx)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *transactionRepository) ListStale(ctx context.Context, statuses []models.TransactionStatus, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	q := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	return txs, nil
}

func (r *transactionRepository) ListChildren(ctx context.Context, parentID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ?", parentID).
		Order("created_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list child transactions: %w", err)
	}
	return txs, nil
}
