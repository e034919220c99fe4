package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receiptminer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "receiptminer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Mining requests by receipt source
	miningRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receiptminer_api_receipts_total",
			Help: "Receipts mined through the API",
		},
		[]string{"source", "status"}, // source: upload, pdf, fiscal_code
	)

	miningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "receiptminer_api_mining_duration_seconds",
			Help:    "Time to mine one API request in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"source"},
	)

	validationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receiptminer_api_validations_total",
			Help: "Records validated through the API",
		},
		[]string{"consistent"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receiptminer_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receiptminer_upload_size_bytes",
			Help:    "Size of uploaded receipts in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)
)
