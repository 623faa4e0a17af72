package models

import (
	"strings"
	"time"

	apperrors "payledger/internal/errors"

	"github.com/shopspring/decimal"
)

type TransactionType string

// Transaction types
const (
	TransactionTypePayment      TransactionType = "PAYMENT"
	TransactionTypeRefund       TransactionType = "REFUND"
	TransactionTypeChargeback   TransactionType = "CHARGEBACK"
	TransactionTypeSubscription TransactionType = "SUBSCRIPTION"
	TransactionTypeTopUp        TransactionType = "TOP_UP"
	TransactionTypeWithdrawal   TransactionType = "WITHDRAWAL"
	TransactionTypeFee          TransactionType = "FEE"
	TransactionTypeAdjustment   TransactionType = "ADJUSTMENT"
)

// Direction is the way funds move for a transaction type once it settles.
type Direction int

const (
	// DirectionInbound credits the owner's wallet on success.
	DirectionInbound Direction = iota
	// DirectionOutbound holds funds at submission and consumes the hold on success.
	DirectionOutbound
	// DirectionReversal undoes the movement of a parent transaction.
	DirectionReversal
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePayment, TransactionTypeRefund, TransactionTypeChargeback, TransactionTypeSubscription,
		TransactionTypeTopUp, TransactionTypeWithdrawal, TransactionTypeFee, TransactionTypeAdjustment:
		return true
	}
	return false
}

func (t TransactionType) Direction() Direction {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeFee:
		return DirectionOutbound
	case TransactionTypeRefund, TransactionTypeChargeback:
		return DirectionReversal
	default:
		return DirectionInbound
	}
}

type Provider string

const (
	ProviderStripe  Provider = "STRIPE"
	ProviderSandbox Provider = "SANDBOX"
)

func (p Provider) Valid() bool {
	return p == ProviderStripe || p == ProviderSandbox
}

// ParseProvider accepts a provider name in any case, as used in webhook paths.
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToUpper(strings.TrimSpace(name)))
	return p, p.Valid()
}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodWallet       PaymentMethod = "WALLET"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Transaction is one payment attempt series, or a refund/chargeback of one.
type Transaction struct {
	ID                    string            `gorm:"primaryKey;size:36" json:"id"`
	ExternalTransactionID string            `gorm:"size:128;not null;uniqueIndex" json:"external_transaction_id"`
	OwnerID               uint              `gorm:"not null;index" json:"owner_id"`
	Amount                decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency              string            `gorm:"size:3;not null" json:"currency"`
	Provider              Provider          `gorm:"size:32;not null;index:idx_transactions_provider_ref" json:"provider"`
	ProviderRef           string            `gorm:"size:255;index:idx_transactions_provider_ref" json:"provider_ref,omitempty"`
	PaymentMethod         PaymentMethod     `gorm:"size:32;not null" json:"payment_method"`
	Type                  TransactionType   `gorm:"size:32;not null" json:"type"`
	Status                TransactionStatus `gorm:"size:32;not null;index" json:"status"`
	AttemptCount          int               `gorm:"not null;default:0" json:"attempt_count"`
	ParentTransactionID   *string           `gorm:"size:36;index" json:"parent_transaction_id,omitempty"`
	RiskScore             float64           `gorm:"not null;default:0" json:"risk_score"`

	RefundedAmount      decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"refunded_amount"`
	PendingRefundAmount decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"pending_refund_amount"`

	FailureCode         string           `json:"failure_code,omitempty"`
	FailureMessage      string           `json:"failure_message,omitempty"`
	Reason              string           `json:"reason,omitempty"`
	Metadata            ProviderMetadata `gorm:"type:jsonb" json:"metadata,omitempty"`
	NeedsReconciliation bool             `gorm:"not null;default:false" json:"needs_reconciliation"`

	Version uint `gorm:"not null;default:1" json:"version"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	// HeldAt is when the current attempt's outbound hold was placed, on the
	// wallet's clock.
	HeldAt        *time.Time `json:"held_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func (t *Transaction) Direction() Direction {
	return t.Type.Direction()
}

// IsRefundable reports whether the transaction may currently be refunded.
func (t *Transaction) IsRefundable() bool {
	if t.Type.Direction() == DirectionReversal {
		return false
	}
	return t.Status == StatusSucceeded || t.Status == StatusPartiallyRefunded
}

// RefundableAmount is what is left after settled and in-flight refunds.
func (t *Transaction) RefundableAmount() decimal.Decimal {
	return t.Amount.Sub(t.RefundedAmount).Sub(t.PendingRefundAmount)
}

// SamePayload compares the request-supplied fields of two transactions.
func (t *Transaction) SamePayload(other *Transaction) bool {
	return t.OwnerID == other.OwnerID &&
		t.Amount.Equal(other.Amount) &&
		t.Currency == other.Currency &&
		t.Provider == other.Provider &&
		t.PaymentMethod == other.PaymentMethod &&
		t.Type == other.Type
}

// ClaimRefund reserves amount of the refundable remainder for an in-flight refund.
func (t *Transaction) ClaimRefund(amount decimal.Decimal) error {
	if !t.IsRefundable() {
		return apperrors.Wrap(apperrors.ErrRefundNotAllowed, "transaction %s is %s %s", t.ID, t.Type, t.Status)
	}
	if !amount.IsPositive() || amount.GreaterThan(t.RefundableAmount()) {
		return apperrors.Wrap(apperrors.ErrInvalidRefundAmount,
			"requested %s, refundable %s", amount.StringFixed(AmountScale), t.RefundableAmount().StringFixed(AmountScale))
	}
	t.PendingRefundAmount = t.PendingRefundAmount.Add(amount)
	return nil
}

// ReleaseRefundClaim drops a claim whose refund failed.
func (t *Transaction) ReleaseRefundClaim(amount decimal.Decimal) {
	t.PendingRefundAmount = decimal.Max(decimal.Zero, t.PendingRefundAmount.Sub(amount))
}

// SettleRefundClaim moves a claim into RefundedAmount and returns the status
// the parent should move to.
func (t *Transaction) SettleRefundClaim(amount decimal.Decimal) TransactionStatus {
	t.ReleaseRefundClaim(amount)
	t.RefundedAmount = t.RefundedAmount.Add(amount)
	if t.RefundedAmount.GreaterThanOrEqual(t.Amount) {
		return StatusRefunded
	}
	return StatusPartiallyRefunded
}

// ApplyStatus moves the transaction to next, stamping the matching timestamp.
// It enforces the state table but not the retry cap.
func (t *Transaction) ApplyStatus(next TransactionStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return apperrors.Wrap(apperrors.ErrInvalidTransition, "%s -> %s", t.Status, next)
	}
	if !t.CreatedAt.IsZero() && now.Before(t.CreatedAt) {
		return apperrors.Wrap(apperrors.ErrValidation, "timestamp %s precedes creation at %s",
			now.Format(time.RFC3339Nano), t.CreatedAt.Format(time.RFC3339Nano))
	}
	ts := now
	switch next {
	case StatusProcessing:
		t.LastAttemptAt = &ts
	case StatusSucceeded:
		stampOnce(&t.ProcessedAt, ts)
	case StatusFailed:
		t.AttemptCount++
		t.FailedAt = &ts
	case StatusRefunded, StatusPartiallyRefunded:
		stampOnce(&t.RefundedAt, ts)
	case StatusExpired:
		stampOnce(&t.ExpiredAt, ts)
	case StatusCancelled:
		stampOnce(&t.CancelledAt, ts)
	case StatusPending:
		// A retry starts from scratch, so outcomes quoting the failed
		// attempt's reference no longer find it.
		t.ProviderRef = ""
		t.HeldAt = nil
		t.FailureCode = ""
		t.FailureMessage = ""
	}
	t.Status = next
	return nil
}

func stampOnce(field **time.Time, ts time.Time) {
	if *field == nil {
		*field = &ts
	}
}
