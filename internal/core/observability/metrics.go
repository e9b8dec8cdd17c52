package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metricSet struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec
	upstreamResults            *prometheus.CounterVec
	addressCache               *prometheus.CounterVec
	lookups                    *prometheus.CounterVec
	batchRows                  *prometheus.HistogramVec
	batchDurationSeconds       *prometheus.HistogramVec
	lookupEventsDropped        prometheus.Counter
}

var current atomic.Pointer[metricSet]

func init() {
	current.Store(newMetricSet(prometheus.DefaultRegisterer))
}

// Init re-registers every collector on reg. Call once at startup, before
// serving traffic; later observations go to reg.
func Init(reg prometheus.Registerer) {
	current.Store(newMetricSet(reg))
}

func newMetricSet(reg prometheus.Registerer) *metricSet {
	f := promauto.With(reg)
	return &metricSet{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15), // 0.5ms to ~8s
			},
			[]string{"method", "route", "status"},
		),
		upstreamLatencySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream"},
		),
		upstreamResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_results_total",
				Help: "Upstream call outcomes.",
			},
			[]string{"upstream", "outcome"},
		),
		addressCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "address_cache_results_total",
				Help: "Address cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sector_lookups_total",
				Help: "Sector lookups by input source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		batchRows: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batch_rows",
				Help:    "Rows per batch request.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"mode"},
		),
		batchDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batch_duration_seconds",
				Help:    "Wall time of whole batch requests.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"mode"},
		),
		lookupEventsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "lookup_events_dropped_total",
				Help: "Lookup events dropped because the publish queue was full or failed.",
			},
		),
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := current.Load()
	st := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	current.Load().upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncUpstreamResult counts one upstream outcome: ok, not_found, retry or error.
func IncUpstreamResult(upstream, outcome string) {
	current.Load().upstreamResults.WithLabelValues(upstream, outcome).Inc()
}

func IncAddressCacheHit() {
	current.Load().addressCache.WithLabelValues("hit").Inc()
}

func IncAddressCacheMiss() {
	current.Load().addressCache.WithLabelValues("miss").Inc()
}

// IncLookup counts a finished lookup. source is "coordinates" or "address".
func IncLookup(source, outcome string) {
	current.Load().lookups.WithLabelValues(source, outcome).Inc()
}

func ObserveBatch(mode string, rows int, durationSeconds float64) {
	m := current.Load()
	m.batchRows.WithLabelValues(mode).Observe(float64(rows))
	m.batchDurationSeconds.WithLabelValues(mode).Observe(durationSeconds)
}

func IncLookupEventDropped() {
	current.Load().lookupEventsDropped.Inc()
}
