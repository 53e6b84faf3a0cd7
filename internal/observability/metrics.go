package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Route families group the API surface for dashboards.
const (
	familyGeneration = "generation"
	familySchema     = "schema"
	familyHealth     = "health"
	familyMetrics    = "metrics"
	familyOther      = "other"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsqlgen_http_requests_total",
			Help: "Total number of HTTP requests by route family, route and status.",
		},
		[]string{"family", "method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsqlgen_http_request_duration_seconds",
			Help:    "HTTP request latency by route family.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"family", "status"},
	)

	httpInFlightRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tsqlgen_http_in_flight_requests",
			Help: "HTTP requests currently being served by route family.",
		},
		[]string{"family"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, httpInFlightRequests)
}

// routeFamily maps a mux pattern such as "POST /v1/generate-sql" to its family.
func routeFamily(pattern string) string {
	path := pattern
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		path = rest
	}
	switch {
	case strings.HasSuffix(path, "/generate-sql"):
		return familyGeneration
	case strings.HasSuffix(path, "/schema"):
		return familySchema
	case strings.HasSuffix(path, "/health"), strings.HasSuffix(path, "/ready"):
		return familyHealth
	case strings.HasSuffix(path, "/metrics"):
		return familyMetrics
	default:
		return familyOther
	}
}
