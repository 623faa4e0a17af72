package models

import (
	"time"

	apperrors "payledger/internal/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletStatus string

const (
	WalletStatusActive              WalletStatus = "ACTIVE"
	WalletStatusSuspended           WalletStatus = "SUSPENDED"
	WalletStatusFrozen              WalletStatus = "FROZEN"
	WalletStatusClosed              WalletStatus = "CLOSED"
	WalletStatusPendingVerification WalletStatus = "PENDING_VERIFICATION"
	WalletStatusUnderReview         WalletStatus = "UNDER_REVIEW"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusFrozen, WalletStatusClosed,
		WalletStatusPendingVerification, WalletStatusUnderReview:
		return true
	}
	return false
}

// AmountScale is the number of fractional digits stored for every amount.
const AmountScale = 4

// Wallet is the per owner, per currency balance holder.
//
// Balances are only changed through the primitives below. Total is derived
// from the three buckets and recomputed on every change.
type Wallet struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	OwnerID  uint   `gorm:"not null;uniqueIndex:idx_wallets_owner_currency" json:"owner_id"`
	Currency string `gorm:"size:3;not null;uniqueIndex:idx_wallets_owner_currency" json:"currency"`

	Available decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"available"`
	Pending   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"pending"`
	Reserved  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"reserved"`
	Total     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"total"`

	// A zero limit means unlimited, except MinimumBalance which is the floor
	// for available funds.
	MinimumBalance decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"minimum_balance"`
	MaximumBalance decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"maximum_balance"`
	DailyLimit     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"daily_limit"`
	MonthlyLimit   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"monthly_limit"`
	DailySpent     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"daily_spent"`
	MonthlySpent   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"monthly_spent"`
	DailyResetAt   time.Time       `json:"daily_reset_at"`
	MonthlyResetAt time.Time       `json:"monthly_reset_at"`

	Status       WalletStatus `gorm:"size:32;not null;default:'ACTIVE'" json:"status"`
	StatusReason string       `gorm:"default:''" json:"status_reason"`

	Version           uint       `gorm:"not null;default:1" json:"version"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewWallet returns an active, empty wallet.
func NewWallet(ownerID uint, currency string) *Wallet {
	w := &Wallet{
		OwnerID:  ownerID,
		Currency: currency,
		Status:   WalletStatusActive,
		Version:  1,
	}
	w.RecomputeTotal()
	return w
}

// BeforeSave keeps Total consistent with the buckets whatever path writes the row.
func (w *Wallet) BeforeSave(tx *gorm.DB) error {
	w.RecomputeTotal()
	return nil
}

// RecomputeTotal derives Total from the three buckets.
func (w *Wallet) RecomputeTotal() {
	w.Total = w.Available.Add(w.Pending).Add(w.Reserved)
}

// Balance is a read-only snapshot of the wallet buckets.
type Balance struct {
	OwnerID   uint            `json:"owner_id"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Reserved  decimal.Decimal `json:"reserved"`
	Total     decimal.Decimal `json:"total"`
	Status    WalletStatus    `json:"status"`
	Version   uint            `json:"version"`
}

func (w *Wallet) Balance() Balance {
	return Balance{
		OwnerID:   w.OwnerID,
		Currency:  w.Currency,
		Available: w.Available,
		Pending:   w.Pending,
		Reserved:  w.Reserved,
		Total:     w.Available.Add(w.Pending).Add(w.Reserved),
		Status:    w.Status,
		Version:   w.Version,
	}
}

// ValidateAmount checks that amount is positive with at most AmountScale
// fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Wrap(apperrors.ErrValidation, "amount must be positive, got %s", amount)
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return apperrors.Wrap(apperrors.ErrValidation, "amount %s has more than %d fractional digits", amount, AmountScale)
	}
	return nil
}

// ValidateCurrency checks that code is an upper-case ISO-4217 style code
// and, when supported is non-empty, one of supported.
func ValidateCurrency(code string, supported []string) error {
	if len(code) != 3 {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid currency %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return apperrors.Wrap(apperrors.ErrValidation, "invalid currency %q", code)
		}
	}
	if len(supported) == 0 {
		return nil
	}
	for _, c := range supported {
		if c == code {
			return nil
		}
	}
	return apperrors.Wrap(apperrors.ErrValidation, "currency %s is not supported", code)
}

func (w *Wallet) ensureActive() error {
	if w.Status != WalletStatusActive {
		return apperrors.Wrap(apperrors.ErrWalletNotActive, "wallet %d is %s", w.ID, w.Status)
	}
	return nil
}

func (w *Wallet) availableFloor() decimal.Decimal {
	if w.MinimumBalance.IsPositive() {
		return w.MinimumBalance
	}
	return decimal.Zero
}

func (w *Wallet) checkWithdrawable(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if err := w.ensureActive(); err != nil {
		return err
	}
	if w.Available.Sub(amount).LessThan(w.availableFloor()) {
		return apperrors.Wrap(apperrors.ErrInsufficientFunds,
			"available %s, requested %s", w.Available.StringFixed(AmountScale), amount.StringFixed(AmountScale))
	}
	return nil
}

func (w *Wallet) touch(now time.Time) {
	w.RecomputeTotal()
	ts := now.UTC()
	w.LastTransactionAt = &ts
}

// Debit removes amount from available funds.
func (w *Wallet) Debit(amount decimal.Decimal, now time.Time) error {
	if err := w.checkWithdrawable(amount); err != nil {
		return err
	}
	w.Available = w.Available.Sub(amount)
	w.touch(now)
	return nil
}

// Credit adds amount to available funds.
func (w *Wallet) Credit(amount decimal.Decimal, now time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if err := w.ensureActive(); err != nil {
		return err
	}
	if w.MaximumBalance.IsPositive() && w.Total.Add(amount).GreaterThan(w.MaximumBalance) {
		return apperrors.Wrap(apperrors.ErrBalanceLimitExceeded,
			"total %s plus %s exceeds %s", w.Total.StringFixed(AmountScale), amount.StringFixed(AmountScale), w.MaximumBalance.StringFixed(AmountScale))
	}
	w.Available = w.Available.Add(amount)
	w.touch(now)
	return nil
}

// Reserve moves amount from available into reserved, holding it for a
// pending capture.
func (w *Wallet) Reserve(amount decimal.Decimal, now time.Time) error {
	if err := w.checkWithdrawable(amount); err != nil {
		return err
	}
	w.Available = w.Available.Sub(amount)
	w.Reserved = w.Reserved.Add(amount)
	w.touch(now)
	return nil
}

func (w *Wallet) checkReserved(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if w.Reserved.LessThan(amount) {
		return apperrors.Wrap(apperrors.ErrInsufficientReservedFunds,
			"reserved %s, requested %s", w.Reserved.StringFixed(AmountScale), amount.StringFixed(AmountScale))
	}
	return nil
}

// ReleaseReserve returns held funds to available.
func (w *Wallet) ReleaseReserve(amount decimal.Decimal, now time.Time) error {
	if err := w.checkReserved(amount); err != nil {
		return err
	}
	w.Reserved = w.Reserved.Sub(amount)
	w.Available = w.Available.Add(amount)
	w.touch(now)
	return nil
}

// ConsumeReserve spends held funds: reserved drops and so does total.
func (w *Wallet) ConsumeReserve(amount decimal.Decimal, now time.Time) error {
	if err := w.checkReserved(amount); err != nil {
		return err
	}
	w.Reserved = w.Reserved.Sub(amount)
	w.touch(now)
	return nil
}

// AddPending records funds in flight towards the wallet.
func (w *Wallet) AddPending(amount decimal.Decimal, now time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if err := w.ensureActive(); err != nil {
		return err
	}
	w.Pending = w.Pending.Add(amount)
	w.touch(now)
	return nil
}

// RemovePending drops funds that will no longer arrive.
func (w *Wallet) RemovePending(amount decimal.Decimal, now time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if w.Pending.LessThan(amount) {
		return apperrors.Wrap(apperrors.ErrInsufficientPendingFunds,
			"pending %s, requested %s", w.Pending.StringFixed(AmountScale), amount.StringFixed(AmountScale))
	}
	w.Pending = w.Pending.Sub(amount)
	w.touch(now)
	return nil
}

// ConfirmPending settles a pending deposit: RemovePending then Credit. Either
// both apply or neither does.
func (w *Wallet) ConfirmPending(amount decimal.Decimal, now time.Time) error {
	next := *w
	if err := next.RemovePending(amount, now); err != nil {
		return err
	}
	if err := next.Credit(amount, now); err != nil {
		return err
	}
	*w = next
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// rollLimitWindows lazily resets the spent counters once now has crossed a
// day or month boundary since the last reset.
func (w *Wallet) rollLimitWindows(now time.Time) {
	if day := startOfDay(now); day.After(w.DailyResetAt) {
		w.DailySpent = decimal.Zero
		w.DailyResetAt = day
	}
	if month := startOfMonth(now); month.After(w.MonthlyResetAt) {
		w.MonthlySpent = decimal.Zero
		w.MonthlyResetAt = month
	}
}

// CheckSpendLimits evaluates the daily and monthly limits for a debit-type
// operation of amount at time now.
func (w *Wallet) CheckSpendLimits(amount decimal.Decimal, now time.Time) error {
	w.rollLimitWindows(now)
	if w.DailyLimit.IsPositive() && w.DailySpent.Add(amount).GreaterThan(w.DailyLimit) {
		return apperrors.Wrap(apperrors.ErrLimitExceeded,
			"daily spent %s plus %s exceeds %s", w.DailySpent.StringFixed(AmountScale), amount.StringFixed(AmountScale), w.DailyLimit.StringFixed(AmountScale))
	}
	if w.MonthlyLimit.IsPositive() && w.MonthlySpent.Add(amount).GreaterThan(w.MonthlyLimit) {
		return apperrors.Wrap(apperrors.ErrLimitExceeded,
			"monthly spent %s plus %s exceeds %s", w.MonthlySpent.StringFixed(AmountScale), amount.StringFixed(AmountScale), w.MonthlyLimit.StringFixed(AmountScale))
	}
	return nil
}

// RecordSpend increments the spent counters. CheckSpendLimits must have been
// called for the same operation.
func (w *Wallet) RecordSpend(amount decimal.Decimal) {
	w.DailySpent = w.DailySpent.Add(amount)
	w.MonthlySpent = w.MonthlySpent.Add(amount)
}

// ReverseSpend undoes a spend recorded at spentAt, for each window that has
// not been reset since.
func (w *Wallet) ReverseSpend(amount decimal.Decimal, spentAt, now time.Time) {
	w.rollLimitWindows(now)
	if !spentAt.Before(w.DailyResetAt) {
		w.DailySpent = decimal.Max(decimal.Zero, w.DailySpent.Sub(amount))
	}
	if !spentAt.Before(w.MonthlyResetAt) {
		w.MonthlySpent = decimal.Max(decimal.Zero, w.MonthlySpent.Sub(amount))
	}
}

// SetStatus changes the wallet status. A wallet can only be closed once all
// of its buckets are empty, and a closed wallet stays closed.
func (w *Wallet) SetStatus(status WalletStatus, reason string) error {
	if !status.Valid() {
		return apperrors.Wrap(apperrors.ErrValidation, "unknown wallet status %q", status)
	}
	if w.Status == WalletStatusClosed && status != WalletStatusClosed {
		return apperrors.Wrap(apperrors.ErrWalletNotActive, "wallet %d is closed", w.ID)
	}
	if status == WalletStatusClosed && !w.Available.Add(w.Pending).Add(w.Reserved).IsZero() {
		return apperrors.Wrap(apperrors.ErrValidation, "wallet %d still holds funds", w.ID)
	}
	w.Status = status
	w.StatusReason = reason
	return nil
}
