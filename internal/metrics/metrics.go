// README: Prometheus registry and collectors for HTTP traffic, suggestions, submissions and aggregation runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Suggestions counts answered suggestions by source ("cluster" or "fallback").
	Suggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fare_suggestions_total", Help: "Price suggestions by source."},
		[]string{"source"},
	)
	// CandidatePassHits counts which relaxation pass produced the winning cluster.
	CandidatePassHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fare_candidate_pass_hits_total", Help: "Winning candidate search pass."},
		[]string{"pass"},
	)
	CandidateQueryErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fare_candidate_query_errors_total", Help: "Cluster store failures absorbed into the fallback."},
	)
	StaleClusters = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fare_stale_cluster_confidence_total", Help: "Winning clusters whose stored confidence disagrees with their statistics."},
	)

	// Submissions counts ingestion outcomes: inserted, deduplicated, rejected, unauthorized, error.
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fare_submissions_total", Help: "Route submissions by outcome."},
		[]string{"outcome"},
	)

	AggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fare_aggregation_runs_total", Help: "Cluster refresh runs by status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Suggestions, CandidatePassHits, CandidateQueryErrors, StaleClusters)
		Registry.MustRegister(Submissions, AggregationRuns)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
