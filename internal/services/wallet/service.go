package wallet

import (
	"context"
	"time"

	"payledger/internal/models"
	"payledger/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type service struct {
	repo    repositories.WalletRepository
	cache   BalanceCache
	config  WalletConfig
	metrics MetricsCollector
	logger  *zap.Logger
}

// NewService creates a new wallet service
func NewService(
	repo repositories.WalletRepository,
	cache BalanceCache,
	config WalletConfig,
	metrics MetricsCollector,
	logger *zap.Logger,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = noopCache{}
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

	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		repo:    repo,
		cache:   cache,
		config:  config,
		metrics: metrics,
		logger:  logger.Named("wallet"),
	}
}

func (s *service) now() time.Time {
	return s.config.Clock().UTC()
}

func (s *service) Debit(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationDebit, amount, func(w *models.Wallet, now time.Time) error {
		if err := models.ValidateAmount(amount); err != nil {
			return err
		}
		if err := w.CheckSpendLimits(amount, now); err != nil {
			return err
		}
		if err := w.Debit(amount, now); err != nil {
			return err
		}
		w.RecordSpend(amount)
		return nil
	})
}

func (s *service) Credit(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationCredit, amount, func(w *models.Wallet, now time.Time) error {
		return w.Credit(amount, now)
	})
}

func (s *service) Reserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationReserve, amount, func(w *models.Wallet, now time.Time) error {
		if err := models.ValidateAmount(amount); err != nil {
			return err
		}
		if err := w.CheckSpendLimits(amount, now); err != nil {
			return err
		}
		if err := w.Reserve(amount, now); err != nil {
			return err
		}
		w.RecordSpend(amount)
		return nil
	})
}

func (s *service) Hold(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationReserve, amount, func(w *models.Wallet, now time.Time) error {
		return w.Reserve(amount, now)
	})
}

func (s *service) ReleaseReserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationReleaseReserve, amount, func(w *models.Wallet, now time.Time) error {
		return w.ReleaseReserve(amount, now)
	})
}

func (s *service) ReleaseAttempt(ctx context.Context, t Target, amount decimal.Decimal, spentAt time.Time) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationReleaseReserve, amount, func(w *models.Wallet, now time.Time) error {
		if err := w.ReleaseReserve(amount, now); err != nil {
			return err
		}
		w.ReverseSpend(amount, spentAt, now)
		return nil
	})
}

func (s *service) ConsumeReserve(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationConsumeReserve, amount, func(w *models.Wallet, now time.Time) error {
		return w.ConsumeReserve(amount, now)
	})
}

func (s *service) AddPending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationAddPending, amount, func(w *models.Wallet, now time.Time) error {
		return w.AddPending(amount, now)
	})
}

func (s *service) RemovePending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationRemovePending, amount, func(w *models.Wallet, now time.Time) error {
		return w.RemovePending(amount, now)
	})
}

func (s *service) ConfirmPending(ctx context.Context, t Target, amount decimal.Decimal) (*models.Wallet, error) {
	return s.mutate(ctx, t, models.WalletOperationConfirmPending, amount, func(w *models.Wallet, now time.Time) error {
		return w.ConfirmPending(amount, now)
	})
}

func (s *service) SetStatus(ctx context.Context, ownerID uint, currency string, status models.WalletStatus, reason string) (*models.Wallet, error) {
	t := Target{OwnerID: ownerID, Currency: currency}
	w, err := s.mutate(ctx, t, models.WalletOperationSetStatus, decimal.Zero, func(w *models.Wallet, _ time.Time) error {
		return w.SetStatus(status, reason)
	})
	if err == nil {
		s.logger.Info("wallet status changed",
			zap.Uint("owner_id", ownerID),
			zap.String("currency", currency),
			zap.String("status", string(status)),
			zap.String("reason", reason))
	}
	return w, err
}

func (s *service) History(ctx context.Context, ownerID uint, currency string) ([]models.WalletEntry, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID, currency)
	if err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, w.ID)
}

func (s *service) Reconstruct(ctx context.Context, ownerID uint, currency string) (*Reconstruction, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID, currency)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	available, pending, reserved := models.Replay(entries)
	r := &Reconstruction{
		Wallet:    w,
		Entries:   len(entries),
		Available: available,
		Pending:   pending,
		Reserved:  reserved,
	}
	if !r.Matches() {
		s.logger.Error("wallet does not match its audit trail",
			zap.Uint("wallet_id", w.ID),
			zap.String("stored_available", w.Available.String()),
			zap.String("replayed_available", available.String()),
			zap.String("stored_pending", w.Pending.String()),
			zap.String("replayed_pending", pending.String()),
			zap.String("stored_reserved", w.Reserved.String()),
			zap.String("replayed_reserved", reserved.String()))
	}
	return r, nil
}
