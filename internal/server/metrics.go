package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gobar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Barcode endpoint metrics
	barcodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_barcode_requests_total",
			Help: "Total number of barcode requests served over HTTP and WebSocket",
		},
		[]string{"mode", "status"}, // status: success or an error type
	)

	barcodeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gobar_barcode_request_duration_seconds",
			Help:    "Time from submission to outcome, including queueing",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_verifications_total",
			Help: "Read-back verifications of generated barcodes",
		},
		[]string{"ok"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"window"}, // minute, hour, day
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gobar_upload_size_bytes",
			Help:    "Size of images uploaded for decoding in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gobar_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)
