package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablestream_http_requests_total",
			Help: "Total number of HTTP requests by matched route.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablestream_http_request_duration_seconds",
			Help:    "HTTP request latency by matched route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	streamOpensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablestream_stream_opens_total",
			Help: "Total number of stream open attempts by transport family and outcome.",
		},
		[]string{"transport", "outcome"},
	)
	streamOpenDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablestream_stream_open_duration_seconds",
			Help:    "Time until a transport returned an open stream or an error.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"transport"},
	)
	tableResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablestream_table_resolutions_total",
			Help: "Total number of table lookups by schema and outcome.",
		},
		[]string{"schema", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		streamOpensTotal,
		streamOpenDurationSeconds,
		tableResolutionsTotal,
	)
}

// ObserveStreamOpen records one transport open. transport is a storage
// family name, never a path.
func ObserveStreamOpen(transport string, elapsed time.Duration, err error) {
	outcome := "opened"
	if err != nil {
		outcome = "failed"
	}
	streamOpensTotal.WithLabelValues(transport, outcome).Inc()
	streamOpenDurationSeconds.WithLabelValues(transport).Observe(elapsed.Seconds())
}

func ObserveTableResolution(schema, outcome string) {
	tableResolutionsTotal.WithLabelValues(schema, outcome).Inc()
}
