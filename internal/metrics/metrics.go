package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skycrawl"

var (
	// edgesTotal counts reported follow edges.
	edgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "edges_total",
		Help:      "Total follow edges reported",
	})

	// enrolledTotal counts identities enrolled for enrichment.
	// Labels: distance (0, 1, 2, ...)
	enrolledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "enrolled_total",
		Help:      "Total identities enrolled for enrichment by root distance",
	}, []string{"distance"})

	// expansionsTotal counts identities whose follows were listed.
	expansionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "expansions_total",
		Help:      "Total identities whose follow list was expanded",
	})

	// unreachableTotal counts identities skipped after listing failures.
	unreachableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "unreachable_total",
		Help:      "Total identities skipped after listing failures",
	})

	// enrichmentTotal counts profile lookups.
	// Labels: result (success, failure, rejected)
	enrichmentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrichment",
		Name:      "results_total",
		Help:      "Total profile lookups by result",
	}, []string{"result"})

	// requestDuration measures XRPC request latency.
	// Labels: method (NSID), status (HTTP status or "error")
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "xrpc",
		Name:      "request_duration_seconds",
		Help:      "XRPC request latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "status"})
)

// ObserveRequest records one XRPC request. A zero status means the request
// failed before a response was received.
func ObserveRequest(method string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requestDuration.WithLabelValues(method, label).Observe(d.Seconds())
}
