package payment

import (
	"context"
	"errors"
	"fmt"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/events"
	"payledger/internal/services/provider"
	"payledger/internal/services/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errRefundRaced = errors.New("refunded total changed concurrently")

// ProcessRefund refunds amount of a settled transaction through a child
// REFUND transaction. The amount is claimed on the parent before the provider
// is called, so concurrent refunds can never exceed the refundable remainder.
func (s *service) ProcessRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	parent, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !parent.IsRefundable() {
		return nil, apperrors.Wrap(apperrors.ErrRefundNotAllowed, "transaction %s is %s %s", parent.ID, parent.Type, parent.Status)
	}
	if !amount.IsPositive() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRefundAmount, "amount %s must be positive", amount)
	}
	if err := models.ValidateAmount(amount); err != nil {
		return nil, err
	}
	gw, err := s.gateways.Get(parent.Provider)
	if err != nil {
		return nil, err
	}

	parent, err = s.ledger.Update(ctx, parent.ID, func(p *models.Transaction) error {
		return p.ClaimRefund(amount)
	})
	if err != nil {
		return nil, err
	}

	child, err := s.ledger.Create(ctx, &models.Transaction{
		ExternalTransactionID: "refund-" + uuid.NewString(),
		OwnerID:               parent.OwnerID,
		Amount:                amount,
		Currency:              parent.Currency,
		Provider:              parent.Provider,
		PaymentMethod:         parent.PaymentMethod,
		Type:                  models.TransactionTypeRefund,
		ParentTransactionID:   &parent.ID,
		Reason:                reason,
	})
	if err != nil {
		s.releaseClaim(ctx, parent.ID, amount)
		return nil, err
	}
	s.publish(ctx, events.FromTransaction(events.TypeCreated, child, s.now()))

	// Credited funds stay held until the provider answers.
	if parent.Direction() == models.DirectionInbound {
		if _, err := s.wallets.Hold(ctx, wallet.ForTransaction(child), amount); err != nil {
			s.releaseClaim(ctx, parent.ID, amount)
			return s.abandon(ctx, child, err)
		}
	}

	processing, err := s.ledger.Transition(ctx, child.ID, models.StatusProcessing, nil)
	if err != nil {
		if unwindErr := s.unwindRefund(ctx, child); unwindErr != nil {
			return s.markInconsistent(ctx, child, "release_refund", unwindErr)
		}
		return nil, err
	}
	s.publishStatus(ctx, processing)

	out, err := provider.Normalize(gw.Refund(ctx, provider.RefundCommand{
		RefundID:          processing.ID,
		ParentProviderRef: parent.ProviderRef,
		IdempotencyKey:    attemptKey(processing),
		Amount:            amount,
		Currency:          processing.Currency,
		Reason:            reason,
	}))
	if err != nil {
		return processing, err
	}
	return s.applyRefundOutcome(ctx, processing, out)
}

func (s *service) applyRefundOutcome(ctx context.Context, child *models.Transaction, out provider.Outcome) (*models.Transaction, error) {
	if child.ParentTransactionID == nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "%s %s has no parent", child.Type, child.ID)
	}

	switch out.Status {
	case provider.OutcomeSucceeded:
		settled, err := s.ledger.Transition(ctx, child.ID, models.StatusSucceeded, withRef(out.ProviderRef))
		if err != nil {
			return s.ignoreSettled(ctx, child.ID, err)
		}
		s.publishStatus(ctx, settled)

		parent, err := s.settleParent(ctx, *settled.ParentTransactionID, settled.Amount)
		if err != nil {
			return s.markInconsistent(ctx, settled, "settle_refund", err)
		}
		s.publishStatus(ctx, parent)

		target := wallet.ForTransaction(settled)
		var (
			w  *models.Wallet
			op string
		)
		if parent.Direction() == models.DirectionOutbound {
			op = models.WalletOperationCredit
			w, err = s.wallets.Credit(ctx, target, settled.Amount)
		} else {
			op = models.WalletOperationConsumeReserve
			w, err = s.wallets.ConsumeReserve(ctx, target, settled.Amount)
		}
		if err != nil {
			return s.markInconsistent(ctx, settled, op, err)
		}
		s.publishWallet(ctx, settled, w)

		s.logger.Info("refund settled",
			zap.String("transaction_id", settled.ID),
			zap.String("parent_transaction_id", parent.ID),
			zap.String("amount", settled.Amount.String()),
			zap.String("refunded_amount", parent.RefundedAmount.String()),
			zap.String("parent_status", string(parent.Status)))
		return settled, nil

	case provider.OutcomeFailed:
		failed, err := s.ledger.Transition(ctx, child.ID, models.StatusFailed, withFailure(out))
		if err != nil {
			return s.ignoreSettled(ctx, child.ID, err)
		}
		s.publishStatus(ctx, failed)
		if err := s.unwindRefund(ctx, failed); err != nil {
			return s.markInconsistent(ctx, failed, "release_refund", err)
		}
		return failed, apperrors.Wrap(apperrors.ErrProvider, "%s: %s", out.Code, out.Message)

	default:
		return s.recordRef(ctx, child, out.ProviderRef)
	}
}

// settleParent moves a settled refund's claim into the parent's refunded
// amount and advances the parent to REFUNDED or PARTIALLY_REFUNDED.
func (s *service) settleParent(ctx context.Context, parentID string, amount decimal.Decimal) (*models.Transaction, error) {
	for i := 0; ; i++ {
		parent, err := s.ledger.Get(ctx, parentID)
		if err != nil {
			return nil, err
		}
		preview := *parent
		next := preview.SettleRefundClaim(amount)

		updated, err := s.ledger.Transition(ctx, parentID, next, func(p *models.Transaction) error {
			if p.SettleRefundClaim(amount) != next {
				return errRefundRaced
			}
			return nil
		})
		if errors.Is(err, errRefundRaced) && i < refundSettleRetries {
			continue
		}
		return updated, err
	}
}

// unwindRefund drops the parent claim of a refund that did not settle and
// returns any funds held for it.
func (s *service) unwindRefund(ctx context.Context, child *models.Transaction) error {
	parent, err := s.ledger.Update(ctx, *child.ParentTransactionID, func(p *models.Transaction) error {
		p.ReleaseRefundClaim(child.Amount)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to release refund claim: %w", err)
	}
	if parent.Direction() == models.DirectionInbound {
		if _, err := s.wallets.ReleaseReserve(ctx, wallet.ForTransaction(child), child.Amount); err != nil {
			return fmt.Errorf("failed to release refund hold: %w", err)
		}
	}
	return nil
}

func (s *service) releaseClaim(ctx context.Context, parentID string, amount decimal.Decimal) {
	if _, err := s.ledger.Update(ctx, parentID, func(p *models.Transaction) error {
		p.ReleaseRefundClaim(amount)
		return nil
	}); err != nil {
		s.logger.Error("failed to release refund claim",
			zap.String("transaction_id", parentID),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}
