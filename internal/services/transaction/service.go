package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ledger struct {
	repo    repositories.TransactionRepository
	config  LedgerConfig
	metrics MetricsCollector
	logger  *zap.Logger
}

// NewLedger creates a new transaction ledger
func NewLedger(repo repositories.TransactionRepository, config LedgerConfig, metrics MetricsCollector, logger *zap.Logger) Ledger {
	if repo == nil {
		panic("repo is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = DefaultConflictRetries
	}
	if config.ConflictBackoff <= 0 {
		config.ConflictBackoff = DefaultConflictBackoff
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ledger{
		repo:    repo,
		config:  config,
		metrics: metrics,
		logger:  logger.Named("ledger"),
	}
}

func (l *ledger) now() time.Time {
	return l.config.Clock().UTC()
}

func (l *ledger) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := l.now()
	tx.Status = models.StatusPending
	tx.AttemptCount = 0
	tx.Version = 1
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := l.repo.Create(ctx, tx); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, err
		}
		existing, getErr := l.repo.GetByExternalID(ctx, tx.ExternalTransactionID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load duplicate transaction: %w", getErr)
		}
		return existing, apperrors.Wrap(apperrors.ErrDuplicateTransaction, "external id %s", tx.ExternalTransactionID)
	}

	l.logger.Info("transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("external_transaction_id", tx.ExternalTransactionID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
		zap.String("currency", tx.Currency))
	return tx, nil
}

func (l *ledger) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return l.repo.GetByID(ctx, id)
}

func (l *ledger) GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	return l.repo.GetByExternalID(ctx, externalID)
}

func (l *ledger) GetByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Transaction, error) {
	return l.repo.GetByProviderRef(ctx, provider, ref)
}

func (l *ledger) Transition(ctx context.Context, id string, to models.TransactionStatus, apply func(*models.Transaction) error) (*models.Transaction, error) {
	var from models.TransactionStatus
	tx, err := l.write(ctx, "transition", id, func(tx *models.Transaction, now time.Time) error {
		from = tx.Status
		if err := l.checkTransition(tx, to); err != nil {
			return err
		}
		if err := tx.ApplyStatus(to, now); err != nil {
			return err
		}
		if apply != nil {
			return apply(tx)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadySettled) {
			l.logger.Info("ignoring transition of settled transaction",
				zap.String("transaction_id", id),
				zap.String("status", string(from)),
				zap.String("requested", string(to)))
		}
		return nil, err
	}

	l.metrics.RecordTransition(string(tx.Type), string(from), string(to))
	l.logger.Info("transaction transitioned",
		zap.String("transaction_id", tx.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("attempt_count", tx.AttemptCount))
	return tx, nil
}

func (l *ledger) checkTransition(tx *models.Transaction, to models.TransactionStatus) error {
	if !tx.Status.CanTransitionTo(to) {
		if !tx.Status.InFlight() {
			return apperrors.Wrap(apperrors.ErrAlreadySettled, "transaction %s is %s", tx.ID, tx.Status)
		}
		return apperrors.Wrap(apperrors.ErrInvalidTransition, "transaction %s: %s -> %s", tx.ID, tx.Status, to)
	}
	if tx.Status == models.StatusFailed && to == models.StatusPending && tx.AttemptCount >= l.config.MaxAttempts {
		return apperrors.Wrap(apperrors.ErrMaxRetryAttemptsExceeded,
			"transaction %s used %d of %d attempts", tx.ID, tx.AttemptCount, l.config.MaxAttempts)
	}
	return nil
}

func (l *ledger) Update(ctx context.Context, id string, apply func(*models.Transaction) error) (*models.Transaction, error) {
	return l.write(ctx, "update", id, func(tx *models.Transaction, _ time.Time) error {
		return apply(tx)
	})
}

// write is the read-modify-write loop shared by Transition and Update.
func (l *ledger) write(ctx context.Context, op, id string, fn func(*models.Transaction, time.Time) error) (*models.Transaction, error) {
	for i := 0; ; i++ {
		current, err := l.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		now := l.now()
		next := *current
		if err := fn(&next, now); err != nil {
			return nil, err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = now

		err = l.repo.UpdateWithVersion(ctx, &next, current.Version)
		if err == nil {
			return &next, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, err
		}
		l.metrics.RecordConflict(op)
		if i >= l.config.ConflictRetries {
			return nil, apperrors.Wrap(apperrors.ErrConcurrentModification, "transaction %s %s gave up after %d attempts", id, op, i+1)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.config.ConflictBackoff * time.Duration(i+1)):
		}
	}
}

func (l *ledger) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	return l.repo.ListStale(ctx, []models.TransactionStatus{models.StatusPending, models.StatusProcessing}, cutoff, limit)
}

func (l *ledger) Children(ctx context.Context, parentID string) ([]*models.Transaction, error) {
	return l.repo.ListChildren(ctx, parentID)
}
