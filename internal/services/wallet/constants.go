package wallet

import "time"

// Default configuration values
const (
	DefaultConflictRetries = 3
	DefaultConflictBackoff = 25 * time.Millisecond
)

// Result labels passed to the metrics collector.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)
