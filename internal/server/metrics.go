package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goctc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goctc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scoring metrics
	ctcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goctc_ctc_requests_total",
			Help: "Total number of scoring and decoding requests",
		},
		[]string{"op", "status"}, // op: score, decode; status: success or an error type
	)

	ctcComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goctc_ctc_compute_duration_seconds",
			Help:    "Time spent in the forward-backward computation",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"op"},
	)

	ctcTimeSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goctc_ctc_time_steps",
			Help:    "Number of time steps per emission matrix",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"op"},
	)

	ctcLabelLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goctc_ctc_label_length",
			Help:    "Length of scored labels",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goctc_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	requestBodyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goctc_request_body_bytes",
			Help:    "Size of request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9),
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goctc_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goctc_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
