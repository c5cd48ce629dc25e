package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kite_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kite_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reportsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kite_reports_submitted_total",
			Help: "Total number of fraud reports submitted",
		},
		[]string{"risk_level"},
	)

	lookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kite_identifier_lookups_total",
			Help: "Total number of identifier lookups",
		},
	)
)
