// Package pipeline decouples identity discovery from profile enrichment.
//
// The traversal pushes every newly enrolled identity into a bounded FIFO
// Queue. A single Enricher drains the queue concurrently with the traversal
// and fetches each identity's profile, reporting results to an observer.
//
// Design decision: We use a bounded channel rather than an unbounded slice
// because:
//  1. A full queue blocks the producer, which is the backpressure that keeps
//     the traversal from racing far ahead of the slower profile lookups
//  2. Channel receive order gives FIFO enrichment for free
//  3. Closing the channel is a natural "no more identities" signal that lets
//     the consumer drain what is buffered and then exit
//
// Profile lookup failures are never fatal: they are reported and the
// consumer moves on to the next identity.
package pipeline
