package errors

var (
	ErrTransactionNotFound = &DomainError{
		Code:    "TRANSACTION_NOT_FOUND",
		Message: "transaction not found",
	}
	ErrDuplicateTransaction = &DomainError{
		Code:    "DUPLICATE_TRANSACTION",
		Message: "external transaction id already used",
	}
	ErrInvalidPaymentState = &DomainError{
		Code:    "INVALID_PAYMENT_STATE",
		Message: "transaction is not in a valid state for this operation",
	}
	ErrInvalidTransition = &DomainError{
		Code:    "INVALID_TRANSITION",
		Message: "transaction status transition not allowed",
	}
	ErrAlreadySettled = &DomainError{
		Code:    "ALREADY_SETTLED",
		Message: "transaction already settled",
	}
	ErrMaxRetryAttemptsExceeded = &DomainError{
		Code:    "MAX_RETRY_ATTEMPTS_EXCEEDED",
		Message: "maximum retry attempts exceeded",
	}
	ErrRefundNotAllowed = &DomainError{
		Code:    "REFUND_NOT_ALLOWED",
		Message: "transaction is not refundable",
	}
	ErrInvalidRefundAmount = &DomainError{
		Code:    "INVALID_REFUND_AMOUNT",
		Message: "invalid refund amount",
	}
	ErrProvider = &DomainError{
		Code:    "PROVIDER_ERROR",
		Message: "payment provider failure",
	}
	ErrRiskRejected = &DomainError{
		Code:    "RISK_REJECTED",
		Message: "transaction rejected by risk scoring",
	}
	// ErrLedgerInconsistency marks a transaction whose settlement was recorded
	// but whose wallet mutation could not be applied. It needs manual
	// reconciliation.
	ErrLedgerInconsistency = &DomainError{
		Code:    "LEDGER_INCONSISTENCY",
		Message: "ledger inconsistency requires manual reconciliation",
	}
)
