package transaction

import "time"

// LedgerConfig holds configuration for the transaction ledger
type LedgerConfig struct {
	MaxAttempts     int
	ConflictRetries int
	ConflictBackoff time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// MetricsCollector receives ledger metrics.
type MetricsCollector interface {
	RecordTransition(txType, from, to string)
	RecordConflict(operation string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTransition(string, string, string) {}
func (NoopMetricsCollector) RecordConflict(string) {}
