package pipeline

import "errors"

var (
	// ErrQueueClosed is returned by Queue.Enqueue when the queue no longer
	// accepts identities, either because it was closed or because the consumer
	// stopped. It is a non-fatal condition for the traversal: the identity is
	// dropped from enrichment and traversal continues.
	ErrQueueClosed = errors.New("enrichment queue is closed")

	// ErrEmptyProfile is reported when a lookup returns neither a profile
	// nor an error.
	ErrEmptyProfile = errors.New("profile lookup returned no profile")
)
