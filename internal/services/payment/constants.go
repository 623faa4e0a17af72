package payment

import "time"

const (
	DefaultMaxAttempts        = 3
	DefaultProcessingTimeout  = 24 * time.Hour
	DefaultRiskBlockThreshold = 0.8
	DefaultSweepBatchSize     = 100

	// refundSettleRetries bounds re-reads when concurrent refunds change the
	// parent's refunded total between the read and the write.
	refundSettleRetries = 5
)
