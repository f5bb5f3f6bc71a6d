package usecase

import "time"

// IdempotencyKeyTTL is how long idempotency keys are cached
const IdempotencyKeyTTL = 24 * time.Hour

// Transfer outcomes reported to TransferMetrics.
const (
	OutcomeCommitted           = "committed"
	OutcomeInvalid             = "invalid"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeEngineError         = "engine_error"
)
