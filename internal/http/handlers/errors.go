package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on Message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// engagement outcomes
	ErrCodeBoostCooldown = "boost_cooldown"
	ErrCodeStorageBusy   = "storage_busy"
	ErrCodeInvalidCursor = "invalid_cursor"

	// written by middleware, listed for the API docs
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"
)
