package wallet

import (
	"context"
	"errors"
	"fmt"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/repositories"

	"go.uber.org/zap"
)

func (s *service) Get(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID, currency)
}

// GetOrCreate returns the owner's wallet for currency, creating an active one
// with the default limits on first use.
func (s *service) GetOrCreate(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, apperrors.ErrWalletNotFound) {
		return nil, err
	}
	if err := models.ValidateCurrency(currency, s.config.SupportedCurrencies); err != nil {
		return nil, err
	}

	w = models.NewWallet(ownerID, currency)
	w.MinimumBalance = s.config.DefaultLimits.MinimumBalance
	w.MaximumBalance = s.config.DefaultLimits.MaximumBalance
	w.DailyLimit = s.config.DefaultLimits.DailyLimit
	w.MonthlyLimit = s.config.DefaultLimits.MonthlyLimit

	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Created concurrently.
			return s.repo.GetByOwner(ctx, ownerID, currency)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	s.logger.Info("wallet created",
		zap.Uint("wallet_id", w.ID),
		zap.Uint("owner_id", ownerID),
		zap.String("currency", currency))
	return w, nil
}

// GetBalance serves the balance from the cache when present. A miss fills
// the cache with the snapshot read, which loses to any newer version written
// through meanwhile.
func (s *service) GetBalance(ctx context.Context, ownerID uint, currency string) (models.Balance, error) {
	cached, err := s.cache.GetBalance(ctx, ownerID, currency)
	if err != nil {
		s.logger.Warn("balance cache read failed", zap.Uint("owner_id", ownerID), zap.Error(err))
	}
	if cached != nil {
		s.metrics.RecordCacheHit("balance")
		return *cached, nil
	}
	s.metrics.RecordCacheMiss("balance")

	w, err := s.repo.GetByOwner(ctx, ownerID, currency)
	if err != nil {
		return models.Balance{}, err
	}
	balance := w.Balance()
	if err := s.cache.CacheBalance(ctx, balance); err != nil {
		s.logger.Warn("balance cache write failed", zap.Uint("owner_id", ownerID), zap.Error(err))
	}
	return balance, nil
}
