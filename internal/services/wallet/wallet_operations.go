package wallet

import (
	"context"
	"errors"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mutation func(w *models.Wallet, now time.Time) error

// mutate runs fn against a fresh copy of the wallet and writes the result
// conditioned on the version that was read.
func (s *service) mutate(ctx context.Context, t Target, op string, amount decimal.Decimal, fn mutation) (*models.Wallet, error) {
	start := time.Now()
	var written *models.Wallet

	err := s.withConflictRetry(ctx, op, func() error {
		current, err := s.repo.GetByOwner(ctx, t.OwnerID, t.Currency)
		if err != nil {
			return err
		}
		now := s.now()
		next := *current
		if err := fn(&next, now); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = now

		var entry *models.WalletEntry
		if models.MutatesBalance(op) {
			entry = models.NewWalletEntry(current, &next, op, amount, t.TransactionID, now)
			entry.Description = t.Description
		}
		if err := s.repo.UpdateWithVersion(ctx, &next, current.Version, entry); err != nil {
			return err
		}
		written = &next
		return nil
	})

	s.metrics.RecordOperationDuration(op, time.Since(start))
	if err != nil {
		s.metrics.RecordOperationResult(op, resultOf(err))
		return nil, err
	}
	s.metrics.RecordOperationResult(op, ResultSuccess)

	// The cache keeps the highest version it is given, so the write-through
	// supersedes an older snapshot a concurrent GetBalance is about to fill.
	if err := s.cache.CacheBalance(ctx, written.Balance()); err != nil {
		s.logger.Warn("failed to refresh balance cache",
			zap.Uint("owner_id", t.OwnerID),
			zap.String("currency", t.Currency),
			zap.Error(err))
		if err := s.cache.InvalidateBalance(ctx, t.OwnerID, t.Currency); err != nil {
			s.logger.Warn("failed to invalidate balance cache",
				zap.Uint("owner_id", t.OwnerID),
				zap.String("currency", t.Currency),
				zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("operation", op),
		zap.Uint("wallet_id", written.ID),
		zap.String("amount", amount.String()),
		zap.Uint("version", written.Version),
	}
	if t.TransactionID != nil {
		fields = append(fields, zap.String("transaction_id", *t.TransactionID))
	}
	s.logger.Debug("wallet mutated", fields...)
	return written, nil
}

// withConflictRetry retries attempt on version conflicts with a linear
// backoff, up to the configured number of retries.
func (s *service) withConflictRetry(ctx context.Context, op string, attempt func() error) error {
	for i := 0; ; i++ {
		err := attempt()
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return err
		}
		s.metrics.RecordConflict(op)
		if i >= s.config.ConflictRetries {
			s.logger.Warn("giving up after version conflicts",
				zap.String("operation", op),
				zap.Int("attempts", i+1))
			return apperrors.Wrap(apperrors.ErrConcurrentModification, "%s gave up after %d attempts", op, i+1)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.ConflictBackoff * time.Duration(i+1)):
		}
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrConcurrentModification):
		return ResultConflict
	case apperrors.Code(err) != "":
		return ResultRejected
	default:
		return ResultError
	}
}
