package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Sentinel errors let callers use errors.Is while the
// messages stay readable on the command line.
var (
	// ErrNoRoot is returned when no root actor is given.
	ErrNoRoot = errors.New("no root specified: provide a handle or DID to start from")

	// ErrMissingUsername is returned when no login identifier is configured.
	ErrMissingUsername = errors.New("missing username: set --username, ATP_USERNAME or username in the config file")

	// ErrMissingPassword is returned when no password is configured.
	// The password is never read from the config file.
	ErrMissingPassword = errors.New("missing password: set --password or ATP_PASSWORD")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the expansion depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidPageSize is returned when the page size is outside 1..100.
	ErrInvalidPageSize = errors.New("invalid page size: must be between 1 and 100")

	// ErrInvalidQueueCapacity is returned when the queue capacity is not positive.
	ErrInvalidQueueCapacity = errors.New("invalid queue capacity: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	// Zero disables rate limiting.
	ErrInvalidRate = errors.New("invalid request rate: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingTorOptions is returned when both --tor and --tor-proxy
	// are specified.
	ErrConflictingTorOptions = errors.New("conflicting tor options: --tor and --tor-proxy cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
