package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletEntry is the audit row written with every wallet mutation.
type WalletEntry struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	WalletID      uint            `gorm:"not null;index:idx_wallet_entries_wallet_version" json:"wallet_id"`
	Version       uint            `gorm:"not null;index:idx_wallet_entries_wallet_version" json:"version"`
	TransactionID *string         `gorm:"size:36;index" json:"transaction_id,omitempty"`
	Operation     string          `gorm:"size:32;not null" json:"operation"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`

	AvailableDelta decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"available_delta"`
	PendingDelta   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"pending_delta"`
	ReservedDelta  decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reserved_delta"`

	Available decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"available"`
	Pending   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"pending"`
	Reserved  decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reserved"`
	Total     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total"`

	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewWalletEntry describes the change from before to after.
func NewWalletEntry(before, after *Wallet, op string, amount decimal.Decimal, txID *string, now time.Time) *WalletEntry {
	return &WalletEntry{
		WalletID:       after.ID,
		Version:        after.Version,
		TransactionID:  txID,
		Operation:      op,
		Amount:         amount,
		AvailableDelta: after.Available.Sub(before.Available),
		PendingDelta:   after.Pending.Sub(before.Pending),
		ReservedDelta:  after.Reserved.Sub(before.Reserved),
		Available:      after.Available,
		Pending:        after.Pending,
		Reserved:       after.Reserved,
		Total:          after.Available.Add(after.Pending).Add(after.Reserved),
		CreatedAt:      now.UTC(),
	}
}

// Replay applies the deltas of entries, in order, to an empty wallet.
func Replay(entries []WalletEntry) (available, pending, reserved decimal.Decimal) {
	for _, e := range entries {
		available = available.Add(e.AvailableDelta)
		pending = pending.Add(e.PendingDelta)
		reserved = reserved.Add(e.ReservedDelta)
	}
	return available, pending, reserved
}
