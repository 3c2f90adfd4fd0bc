// Package metrics registers the Prometheus collectors for the web client.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the client records into.
var Metrics = struct {
	UpstreamRequestDuration *prometheus.HistogramVec
	RatingMutations         *prometheus.CounterVec
	SearchFetches           *prometheus.CounterVec
	DebounceCoalesced       prometheus.Counter
	StaleResponsesDropped   prometheus.Counter
	PageRequestDuration     *prometheus.HistogramVec
}{}

var initOnce sync.Once

// Init registers all collectors. Safe to call more than once; only the first
// call registers.
func Init() {
	initOnce.Do(register)
}

func register() {
	Metrics.UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinemate_upstream_request_duration_seconds",
			Help:    "Duration of requests to the movie API, by endpoint, method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RatingMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinemate_rating_mutations_total",
			Help: "Optimistic rating mutations, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	Metrics.SearchFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinemate_search_fetches_total",
			Help: "Catalog fetches issued by the search controller, by mode.",
		},
		[]string{"mode"},
	)

	Metrics.DebounceCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinemate_search_debounce_coalesced_total",
			Help: "Filter changes absorbed by the debounce window without a fetch.",
		},
	)

	Metrics.StaleResponsesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinemate_stale_responses_dropped_total",
			Help: "Responses discarded because a newer request superseded them.",
		},
	)

	Metrics.PageRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinemate_page_request_duration_seconds",
			Help:    "Duration of page requests served by the web client, by route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	prometheus.MustRegister(
		Metrics.UpstreamRequestDuration,
		Metrics.RatingMutations,
		Metrics.SearchFetches,
		Metrics.DebounceCoalesced,
		Metrics.StaleResponsesDropped,
		Metrics.PageRequestDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream call. No-op before Init.
func ObserveUpstream(endpoint, method string, status int, elapsed time.Duration) {
	if Metrics.UpstreamRequestDuration == nil {
		return
	}
	Metrics.UpstreamRequestDuration.
		WithLabelValues(endpoint, method, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

// CountRatingMutation records a rating operation outcome. No-op before Init.
func CountRatingMutation(op, outcome string) {
	if Metrics.RatingMutations == nil {
		return
	}
	Metrics.RatingMutations.WithLabelValues(op, outcome).Inc()
}

// CountSearchFetch records a catalog fetch in the given mode. No-op before Init.
func CountSearchFetch(mode string) {
	if Metrics.SearchFetches == nil {
		return
	}
	Metrics.SearchFetches.WithLabelValues(mode).Inc()
}

// CountDebounceCoalesced records a filter change absorbed by the debounce
// window. No-op before Init.
func CountDebounceCoalesced() {
	if Metrics.DebounceCoalesced == nil {
		return
	}
	Metrics.DebounceCoalesced.Inc()
}

// CountStaleDropped records a superseded response being discarded. No-op
// before Init.
func CountStaleDropped() {
	if Metrics.StaleResponsesDropped == nil {
		return
	}
	Metrics.StaleResponsesDropped.Inc()
}

// ObservePage records one served page request. No-op before Init.
func ObservePage(route, method string, status int, elapsed time.Duration) {
	if Metrics.PageRequestDuration == nil {
		return
	}
	Metrics.PageRequestDuration.
		WithLabelValues(route, method, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}
