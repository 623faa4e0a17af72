package models

type TransactionStatus string

const (
	StatusPending           TransactionStatus = "PENDING"
	StatusProcessing        TransactionStatus = "PROCESSING"
	StatusSucceeded         TransactionStatus = "SUCCEEDED"
	StatusFailed            TransactionStatus = "FAILED"
	StatusCancelled         TransactionStatus = "CANCELLED"
	StatusRefunded          TransactionStatus = "REFUNDED"
	StatusPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	StatusExpired           TransactionStatus = "EXPIRED"
	StatusDisputed          TransactionStatus = "DISPUTED"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:           {StatusProcessing, StatusExpired, StatusCancelled},
	StatusProcessing:        {StatusSucceeded, StatusFailed, StatusCancelled, StatusExpired},
	StatusSucceeded:         {StatusPartiallyRefunded, StatusRefunded, StatusDisputed},
	StatusPartiallyRefunded: {StatusPartiallyRefunded, StatusRefunded, StatusDisputed},
	StatusFailed:            {StatusPending},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// InFlight reports whether a provider outcome is still awaited.
func (s TransactionStatus) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSucceeded, StatusFailed, StatusCancelled,
		StatusRefunded, StatusPartiallyRefunded, StatusExpired, StatusDisputed:
		return true
	}
	return false
}
