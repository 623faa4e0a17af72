package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/provider"
	"payledger/internal/services/wallet"

	"go.uber.org/zap"
)

func attemptKey(tx *models.Transaction) string {
	return fmt.Sprintf("%s-%d", tx.ID, tx.AttemptCount+1)
}

// submit runs one attempt of a PENDING transaction. Outbound funds are held
// before the attempt starts and the provider is called with no wallet write
// in progress.
func (s *service) submit(ctx context.Context, tx *models.Transaction, gw provider.Gateway) (*models.Transaction, error) {
	target := wallet.ForTransaction(tx)
	outbound := tx.Direction() == models.DirectionOutbound
	heldAt := s.now()

	var markHeld func(*models.Transaction) error
	if outbound {
		w, err := s.wallets.Reserve(ctx, target, tx.Amount)
		if err != nil {
			return s.abandon(ctx, tx, err)
		}
		// Spend limits were charged on the wallet's clock.
		if w != nil && w.LastTransactionAt != nil {
			heldAt = *w.LastTransactionAt
		}
		markHeld = func(t *models.Transaction) error {
			t.HeldAt = &heldAt
			return nil
		}
	}

	processing, err := s.ledger.Transition(ctx, tx.ID, models.StatusProcessing, markHeld)
	if err != nil {
		// Cancelled or swept while the hold was being placed.
		if outbound {
			if _, relErr := s.wallets.ReleaseAttempt(ctx, target, tx.Amount, heldAt); relErr != nil {
				_, incErr := s.markInconsistent(ctx, tx, "release_hold", relErr)
				return nil, incErr
			}
		}
		return nil, err
	}
	s.publishStatus(ctx, processing)

	out, err := provider.Normalize(gw.Submit(ctx, provider.Submission{
		TransactionID:  processing.ID,
		IdempotencyKey: attemptKey(processing),
		OwnerID:        processing.OwnerID,
		Amount:         processing.Amount,
		Currency:       processing.Currency,
		Method:         processing.PaymentMethod,
		Type:           processing.Type,
		Metadata:       processing.Metadata,
	}))
	if err != nil {
		// Cancelled by the caller; the transaction stays PROCESSING until a
		// notification or the sweeper resolves it.
		return processing, err
	}
	return s.applyOutcome(ctx, processing, out)
}

// abandon cancels a PENDING transaction whose funds could not be held.
func (s *service) abandon(ctx context.Context, tx *models.Transaction, cause error) (*models.Transaction, error) {
	cancelled, err := s.ledger.Transition(ctx, tx.ID, models.StatusCancelled, func(t *models.Transaction) error {
		t.FailureCode = apperrors.Code(cause)
		t.FailureMessage = cause.Error()
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to cancel transaction after hold failure", zap.String("transaction_id", tx.ID), zap.Error(err))
		return tx, cause
	}
	s.publishStatus(ctx, cancelled)
	return cancelled, cause
}

// applyOutcome records a provider outcome for the attempt tx was read in.
// Outcomes for transactions that settled or moved on to a newer attempt are
// ignored.
func (s *service) applyOutcome(ctx context.Context, tx *models.Transaction, out provider.Outcome) (*models.Transaction, error) {
	if tx.Direction() == models.DirectionReversal {
		return s.applyRefundOutcome(ctx, tx, out)
	}

	switch out.Status {
	case provider.OutcomeSucceeded:
		settled, err := s.ledger.Transition(ctx, tx.ID, models.StatusSucceeded, chain(sameAttempt(tx), withRef(out.ProviderRef)))
		if err != nil {
			return s.ignoreSettled(ctx, tx.ID, err)
		}
		s.publishStatus(ctx, settled)
		return s.settle(ctx, settled)

	case provider.OutcomeFailed:
		failed, err := s.ledger.Transition(ctx, tx.ID, models.StatusFailed, chain(sameAttempt(tx), withFailure(out)))
		if err != nil {
			return s.ignoreSettled(ctx, tx.ID, err)
		}
		s.publishStatus(ctx, failed)
		s.logger.Info("payment attempt failed",
			zap.String("transaction_id", failed.ID),
			zap.Int("attempt_count", failed.AttemptCount),
			zap.String("code", out.Code),
			zap.String("message", out.Message))
		if failed.Direction() == models.DirectionOutbound {
			if _, err := s.wallets.ReleaseAttempt(ctx, wallet.ForTransaction(failed), failed.Amount, attemptStart(failed)); err != nil {
				return s.markInconsistent(ctx, failed, "release_hold", err)
			}
		}
		return failed, apperrors.Wrap(apperrors.ErrProvider, "%s: %s", out.Code, out.Message)

	default:
		return s.recordRef(ctx, tx, out.ProviderRef)
	}
}

// settle applies the single wallet mutation of a SUCCEEDED transaction.
func (s *service) settle(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	target := wallet.ForTransaction(tx)
	var (
		w   *models.Wallet
		err error
		op  string
	)
	switch tx.Direction() {
	case models.DirectionOutbound:
		op = models.WalletOperationConsumeReserve
		w, err = s.wallets.ConsumeReserve(ctx, target, tx.Amount)
	default:
		op = models.WalletOperationCredit
		w, err = s.wallets.Credit(ctx, target, tx.Amount)
	}
	if err != nil {
		return s.markInconsistent(ctx, tx, op, err)
	}
	s.publishWallet(ctx, tx, w)
	return tx, nil
}

// recordRef stores the provider reference of a pending attempt.
func (s *service) recordRef(ctx context.Context, tx *models.Transaction, ref string) (*models.Transaction, error) {
	if ref == "" || ref == tx.ProviderRef {
		return tx, nil
	}
	current := sameAttempt(tx)
	updated, err := s.ledger.Update(ctx, tx.ID, func(t *models.Transaction) error {
		if !t.Status.InFlight() {
			return apperrors.Wrap(apperrors.ErrAlreadySettled, "transaction %s is %s", t.ID, t.Status)
		}
		if err := current(t); err != nil {
			return err
		}
		t.ProviderRef = ref
		return nil
	})
	if err != nil {
		return s.ignoreSettled(ctx, tx.ID, err)
	}
	return updated, nil
}

// ignoreSettled turns ErrAlreadySettled into a no-op returning the stored
// transaction.
func (s *service) ignoreSettled(ctx context.Context, id string, err error) (*models.Transaction, error) {
	if !errors.Is(err, apperrors.ErrAlreadySettled) {
		return nil, err
	}
	return s.ledger.Get(ctx, id)
}

func withRef(ref string) func(*models.Transaction) error {
	return func(t *models.Transaction) error {
		if ref != "" {
			t.ProviderRef = ref
		}
		return nil
	}
}

func withFailure(out provider.Outcome) func(*models.Transaction) error {
	return func(t *models.Transaction) error {
		if out.ProviderRef != "" {
			t.ProviderRef = out.ProviderRef
		}
		t.FailureCode = out.Code
		t.FailureMessage = out.Message
		return nil
	}
}

// sameAttempt vetoes an outcome write once read's attempt was superseded.
// Every new attempt follows a counted failure, so the count identifies the
// attempt. It runs after the new status is applied, so a failure being
// recorded is already counted.
func sameAttempt(read *models.Transaction) func(*models.Transaction) error {
	return func(t *models.Transaction) error {
		count := t.AttemptCount
		if t.Status == models.StatusFailed && read.Status != models.StatusFailed {
			count--
		}
		if count != read.AttemptCount {
			return apperrors.Wrap(apperrors.ErrAlreadySettled, "attempt %d of transaction %s was superseded", read.AttemptCount+1, t.ID)
		}
		return nil
	}
}

func chain(fns ...func(*models.Transaction) error) func(*models.Transaction) error {
	return func(t *models.Transaction) error {
		for _, fn := range fns {
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	}
}

// attemptStart is when the current attempt's hold was placed.
func attemptStart(tx *models.Transaction) time.Time {
	if tx.HeldAt != nil {
		return *tx.HeldAt
	}
	if tx.LastAttemptAt != nil {
		return *tx.LastAttemptAt
	}
	return tx.CreatedAt
}
