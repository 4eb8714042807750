package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/skycrawl/internal/model"
)

// ErrListing marks a follow listing failure that ended the crawl
// (or, under FailSkip, the expansion of one identity).
var ErrListing = errors.New("follow listing failed")

// ErrInvalidFailurePolicy is returned when a failure policy name is unknown.
var ErrInvalidFailurePolicy = errors.New("invalid failure policy: expected abort, retry or skip")

// ListingError describes which page of which identity could not be listed.
// It matches both ErrListing and the underlying cause with errors.Is.
type ListingError struct {
	// Actor is the identity whose follows were being listed.
	Actor model.Identity

	// Cursor is the cursor of the failing page ("" for the first page).
	Cursor string

	// Err is the last error returned by the lister.
	Err error
}

// Error implements error.
func (e *ListingError) Error() string {
	return fmt.Sprintf("listing follows of %s (cursor %q): %v", e.Actor, e.Cursor, e.Err)
}

// Unwrap returns both the sentinel and the cause.
func (e *ListingError) Unwrap() []error {
	return []error{ErrListing, e.Err}
}

// Configuration errors returned by Config.Validate.
var (
	// ErrInvalidPageSize is returned when the page size is outside [1, 100].
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")

	// ErrInvalidQueueCapacity is returned when the queue capacity is not positive.
	ErrInvalidQueueCapacity = errors.New("queue capacity must be at least 1")

	// ErrInvalidExpandDistance is returned when the expansion distance is negative.
	ErrInvalidExpandDistance = errors.New("max expand distance must not be negative")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("max retries must not be negative")
)
