// Package observability provides Prometheus metrics for the Runestone
// client SDK, the validation harness, and the mock server.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// ClientRequestsTotal counts SDK requests by endpoint and status class.
	// The status label is "2xx"/"4xx"/"5xx", or "error" when the request
	// never produced an HTTP response.
	ClientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runestone_client_requests_total",
			Help: "SDK requests",
		},
		[]string{"endpoint", "status"},
	)

	// ClientRequestDuration records SDK request duration in seconds by endpoint.
	// For streaming calls this covers setup until the first byte of the stream.
	ClientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runestone_client_request_duration_seconds",
			Help:    "SDK request duration",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint"},
	)

	// StreamsActive tracks SSE streams currently open on the client side.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runestone_client_streams_active",
			Help: "Active client streams",
		},
	)

	// ChecksTotal counts validation check executions by check name and outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runestone_validate_checks_total",
			Help: "Validation checks",
		},
		[]string{"check", "status"},
	)

	// CheckDuration records validation check duration in seconds.
	CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runestone_validate_check_duration_seconds",
			Help:    "Validation check duration",
			Buckets: LLMBuckets,
		},
		[]string{"check"},
	)

	// MockRequestsTotal counts requests served by the mock server.
	MockRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runestone_mock_requests_total",
			Help: "Mock server requests",
		},
		[]string{"method", "status"},
	)

	// MockStreamingActive tracks SSE responses in flight on the mock server.
	MockStreamingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runestone_mock_streaming_active",
			Help: "Active mock streaming responses",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ClientRequestsTotal,
		ClientRequestDuration,
		StreamsActive,
		ChecksTotal,
		CheckDuration,
		MockRequestsTotal,
		MockStreamingActive,
	)
}

// StatusClass renders an HTTP status code as its class label: "2xx", "4xx", "5xx".
func StatusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
