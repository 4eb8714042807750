// Package observe defines the event sink the crawler reports to.
//
// The traversal and the enrichment consumer never write to the console or a
// database directly. They emit structured events (edge traversed, identity
// enrolled, enrichment succeeded, ...) to an Observer, and the command wires
// concrete observers together with Multi.
//
// Design decision: Events are methods on one interface rather than a channel
// of tagged values because:
//  1. Observers stay synchronous, so ordering within one stream is preserved
//  2. Implementations only override the events they care about (embed Nop)
//  3. No extra goroutine is needed per observer
//
// Observers are called from the traversal goroutine(s) and the enrichment
// consumer concurrently, so every implementation must be goroutine-safe.
package observe
