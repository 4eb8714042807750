// Package crawler implements the bounded-depth traversal of the follow graph.
//
// # Architecture
//
// The package is built from four parts:
//
//   - DedupIndex: two independent identity sets guaranteeing that each
//     identity is enrolled for enrichment once and expanded once
//   - Paginator: drives the cursor-paginated follow listing of one identity
//     until the service stops returning a cursor
//   - Walker: the traversal itself, an explicit FIFO work list of
//     (identity, distance) items
//   - Crawler: wires the Walker to the enrichment pipeline and runs both
//     concurrently for one crawl run
//
// # Depth policy
//
// An identity at root distance d has its follows listed iff
// d <= MaxExpandDistance. The default of 1 expands the root and its direct
// follows; identities first reached at distance 2 are enrolled for
// enrichment but never listed.
//
// Design decision: We process the work list in FIFO order rather than
// recursing depth-first because:
//  1. Every identity is discovered at its shortest distance, so a direct
//     follow of the root is always expanded even if a longer path reached it
//  2. Call stack depth no longer depends on the graph
//  3. A level at a time maps directly onto the parallel mode
//
// # Failure policy
//
// A listing error aborts the crawl by default. FailRetry retries transient
// errors with exponential backoff, FailSkip additionally marks an identity
// unreachable after retries are exhausted and continues with the rest.
//
// # Usage
//
//	c := crawler.New(api, crawler.DefaultConfig(), crawler.WithObserver(obs))
//	result, err := c.Run(ctx, "did:plc:...")
package crawler
