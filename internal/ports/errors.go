package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Provider Errors
	ErrProviderUnavailable = errors.New("market data provider is unavailable")
	ErrRateLimited         = errors.New("API rate limit exceeded")
	ErrBadPayload          = errors.New("malformed provider response")

	// Ledger Errors
	ErrPositionAlreadyOpen = errors.New("an open position already exists for the symbol")
	ErrNoOpenPosition      = errors.New("no open position exists for the symbol")

	// Delivery Errors
	ErrDeliveryFailed = errors.New("alert delivery failed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
