// Package metrics exposes crawl progress as Prometheus metrics.
//
// Collectors are registered once on the default registry with promauto.
// Observer maps crawl events to counters and the xrpc client reports request
// latency through ObserveRequest. Serve exposes /metrics while a crawl runs.
package metrics
