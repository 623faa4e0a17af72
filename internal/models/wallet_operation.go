package models

// Wallet operations recorded on entries.
const (
	WalletOperationDebit          = "DEBIT"
	WalletOperationCredit         = "CREDIT"
	WalletOperationReserve        = "RESERVE"
	WalletOperationReleaseReserve = "RELEASE_RESERVE"
	WalletOperationConsumeReserve = "CONSUME_RESERVE"
	WalletOperationAddPending     = "ADD_PENDING"
	WalletOperationRemovePending  = "REMOVE_PENDING"
	WalletOperationConfirmPending = "CONFIRM_PENDING"
	WalletOperationSetStatus      = "SET_STATUS"
)

// MutatesBalance reports whether op changes any bucket.
func MutatesBalance(op string) bool {
	return op != WalletOperationSetStatus
}
