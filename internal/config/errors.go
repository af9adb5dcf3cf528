package config

import "errors"

var (
	// ErrInvalidPort indicates the server port is outside 1-65535.
	ErrInvalidPort = errors.New("config: invalid server port")

	// ErrInvalidLedgerBackend indicates an unrecognised ledger backend.
	ErrInvalidLedgerBackend = errors.New("config: invalid ledger backend (must be \"memory\", \"file\", \"bolt\", or \"postgres\")")

	// ErrInvalidStoreBackend indicates an unrecognised content store backend.
	ErrInvalidStoreBackend = errors.New("config: invalid store backend (must be \"object\" or \"ipfs\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidUploadLimit indicates a non-positive upload size limit.
	ErrInvalidUploadLimit = errors.New("config: max upload bytes must be positive")

	// ErrInvalidCacheTTL indicates a negative content cache TTL.
	ErrInvalidCacheTTL = errors.New("config: store cache TTL must not be negative")

	// ErrInvalidCheckInterval indicates a health check interval under one second.
	ErrInvalidCheckInterval = errors.New("config: health check interval must be at least 1s")

	// ErrInvalidWebhook indicates a malformed webhook subscription.
	ErrInvalidWebhook = errors.New("config: invalid webhook subscription")

	// ErrMissingValue indicates a setting required by the selected backend is empty.
	ErrMissingValue = errors.New("config: required value is empty")
)
