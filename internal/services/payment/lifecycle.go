package payment

import (
	"context"
	"errors"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/provider"
	"payledger/internal/services/wallet"

	"go.uber.org/zap"
)

// CapturePayment captures an attempt the provider authorized but did not
// capture.
func (s *service) CapturePayment(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Direction() == models.DirectionReversal || tx.Status != models.StatusProcessing || tx.ProviderRef == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s is not awaiting capture", tx.ID)
	}
	gw, err := s.gateways.Get(tx.Provider)
	if err != nil {
		return nil, err
	}

	out, err := provider.Normalize(gw.Capture(ctx, tx.ProviderRef, attemptKey(tx)+"-capture", tx.Amount, tx.Currency))
	if err != nil {
		return tx, err
	}
	return s.applyOutcome(ctx, tx, out)
}

// CancelPayment cancels a transaction that has not settled. A submitted
// attempt is cancelled at the provider first.
func (s *service) CancelPayment(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Direction() == models.DirectionReversal || !tx.Status.InFlight() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s is %s %s", tx.ID, tx.Type, tx.Status)
	}

	if tx.Status == models.StatusProcessing && tx.ProviderRef == "" {
		// The provider has not acknowledged the attempt, so it may still
		// capture the held funds.
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s has an unacknowledged attempt in flight", tx.ID)
	}
	if tx.Status == models.StatusProcessing {
		gw, err := s.gateways.Get(tx.Provider)
		if err != nil {
			return nil, err
		}
		out, err := provider.Normalize(gw.Cancel(ctx, tx.ProviderRef))
		if err != nil {
			return tx, err
		}
		if out.Status != provider.OutcomeSucceeded {
			return tx, apperrors.Wrap(apperrors.ErrProvider, "cancel rejected: %s %s", out.Code, out.Message)
		}
	}

	cancelled, err := s.ledger.Transition(ctx, tx.ID, models.StatusCancelled, unchangedAttempt(tx))
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, cancelled)

	if tx.Status == models.StatusProcessing && tx.Direction() == models.DirectionOutbound {
		if _, err := s.wallets.ReleaseAttempt(ctx, wallet.ForTransaction(cancelled), cancelled.Amount, attemptStart(tx)); err != nil {
			return s.markInconsistent(ctx, cancelled, "release_hold", err)
		}
	}
	return cancelled, nil
}

// OpenDispute marks a settled transaction as disputed. Disputes are resolved
// outside the ledger and move no funds here.
func (s *service) OpenDispute(ctx context.Context, transactionID, reason string) (*models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsRefundable() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s is %s %s", tx.ID, tx.Type, tx.Status)
	}

	disputed, err := s.ledger.Transition(ctx, tx.ID, models.StatusDisputed, func(t *models.Transaction) error {
		if t.PendingRefundAmount.IsPositive() {
			return apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s has a refund in flight", t.ID)
		}
		t.Reason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, disputed)
	s.logger.Warn("transaction disputed",
		zap.String("transaction_id", disputed.ID),
		zap.String("amount", disputed.Amount.String()),
		zap.String("reason", reason))
	return disputed, nil
}

func (s *service) HandleProviderOutcome(ctx context.Context, n Notification) (*models.Transaction, error) {
	if !n.Outcome.Status.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "unknown outcome status %q", n.Outcome.Status)
	}

	var (
		tx  *models.Transaction
		err error
	)
	switch {
	case n.TransactionID != "":
		tx, err = s.ledger.Get(ctx, n.TransactionID)
	case n.ProviderRef != "":
		tx, err = s.ledger.GetByProviderRef(ctx, n.Provider, n.ProviderRef)
	default:
		return nil, apperrors.Wrap(apperrors.ErrValidation, "transaction id or provider reference is required")
	}
	if err != nil {
		return nil, err
	}
	if tx.Provider != n.Provider {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "transaction %s belongs to %s", tx.ID, tx.Provider)
	}
	if n.ProviderRef != "" && tx.ProviderRef != "" && n.ProviderRef != tx.ProviderRef {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "provider reference %s does not match transaction %s", n.ProviderRef, tx.ID)
	}

	if !tx.Status.InFlight() {
		s.logger.Info("ignoring provider outcome for settled transaction",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)),
			zap.String("outcome", string(n.Outcome.Status)))
		return tx, nil
	}
	current := tx.AttemptCount + 1
	if n.Attempt != 0 && n.Attempt < current {
		s.logger.Info("ignoring provider outcome for superseded attempt",
			zap.String("transaction_id", tx.ID),
			zap.Int("attempt", n.Attempt),
			zap.Int("current_attempt", current),
			zap.String("outcome", string(n.Outcome.Status)))
		return tx, nil
	}
	if tx.Status == models.StatusPending {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s has no attempt in flight", tx.ID)
	}
	if n.Attempt > current {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "attempt %d of transaction %s has not started", n.Attempt, tx.ID)
	}
	if n.Attempt == 0 && !identifiesAttempt(tx, n.ProviderRef) {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "notification does not identify the current attempt of transaction %s", tx.ID)
	}

	out := n.Outcome
	if out.ProviderRef == "" {
		out.ProviderRef = n.ProviderRef
	}
	applied, err := s.applyOutcome(ctx, tx, out)
	if errors.Is(err, apperrors.ErrProvider) && applied != nil && applied.Status == models.StatusFailed {
		// The failure was recorded.
		return applied, nil
	}
	return applied, err
}

func (s *service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.config.ProcessingTimeout)
	stale, err := s.ledger.ListStale(ctx, cutoff, s.config.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs []error
	for _, tx := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.expire(ctx, tx); err != nil {
			if errors.Is(err, apperrors.ErrAlreadySettled) || errors.Is(err, apperrors.ErrConcurrentModification) {
				// Resolved while the sweep ran.
				continue
			}
			s.logger.Error("failed to expire transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		expired++
	}

	s.metrics.RecordExpired(expired)
	if expired > 0 {
		s.logger.Info("expired stale transactions",
			zap.Int("count", expired),
			zap.Time("cutoff", cutoff))
	}
	return expired, errors.Join(errs...)
}

// expire moves tx to EXPIRED. EXPIRED never settles; holds taken by the
// attempt in flight are returned.
func (s *service) expire(ctx context.Context, tx *models.Transaction) error {
	expired, err := s.ledger.Transition(ctx, tx.ID, models.StatusExpired, unchangedAttempt(tx))
	if err != nil {
		return err
	}
	s.publishStatus(ctx, expired)

	var unwindErr error
	switch {
	case tx.Direction() == models.DirectionReversal && tx.Status == models.StatusProcessing:
		unwindErr = s.unwindRefund(ctx, expired)
	case tx.Direction() == models.DirectionReversal:
		s.releaseClaim(ctx, *tx.ParentTransactionID, tx.Amount)
	case tx.Direction() == models.DirectionOutbound && tx.Status == models.StatusProcessing:
		_, unwindErr = s.wallets.ReleaseAttempt(ctx, wallet.ForTransaction(expired), expired.Amount, attemptStart(tx))
	}
	if unwindErr != nil {
		_, err := s.markInconsistent(ctx, expired, "release_hold", unwindErr)
		return err
	}
	return nil
}

// identifiesAttempt reports whether a notification without an attempt number
// can only mean the attempt in flight: it quotes that attempt's reference, or
// the transaction is on its first attempt.
func identifiesAttempt(tx *models.Transaction, ref string) bool {
	if ref != "" && ref == tx.ProviderRef {
		return true
	}
	return tx.AttemptCount == 0
}

// unchangedAttempt vetoes a write if an attempt started or failed since read
// was loaded, so holds are released for the attempt that was observed.
func unchangedAttempt(read *models.Transaction) func(*models.Transaction) error {
	return func(t *models.Transaction) error {
		if t.AttemptCount != read.AttemptCount || !sameTime(t.LastAttemptAt, read.LastAttemptAt) {
			return apperrors.Wrap(apperrors.ErrConcurrentModification, "transaction %s started a new attempt", t.ID)
		}
		return nil
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
