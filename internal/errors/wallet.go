package errors

var (
	ErrValidation = &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrWalletNotActive = &DomainError{
		Code:    "WALLET_NOT_ACTIVE",
		Message: "wallet is not active",
	}
	ErrInsufficientFunds = &DomainError{
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient available funds",
	}
	ErrInsufficientReservedFunds = &DomainError{
		Code:    "INSUFFICIENT_RESERVED_FUNDS",
		Message: "insufficient reserved funds",
	}
	ErrInsufficientPendingFunds = &DomainError{
		Code:    "INSUFFICIENT_PENDING_FUNDS",
		Message: "insufficient pending funds",
	}
	ErrBalanceLimitExceeded = &DomainError{
		Code:    "BALANCE_LIMIT_EXCEEDED",
		Message: "maximum wallet balance exceeded",
	}
	ErrLimitExceeded = &DomainError{
		Code:    "LIMIT_EXCEEDED",
		Message: "spending limit exceeded",
	}
	ErrConcurrentModification = &DomainError{
		Code:    "CONCURRENT_MODIFICATION",
		Message: "concurrent modification detected",
	}
)
