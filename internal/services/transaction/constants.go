package transaction

import "time"

// Default configuration values
const (
	DefaultMaxAttempts     = 3
	DefaultConflictRetries = 3
	DefaultConflictBackoff = 25 * time.Millisecond
)
