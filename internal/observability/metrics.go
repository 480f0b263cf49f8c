package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideon", Name: "rides_created_total", Help: "Total number of rides created"})
	MatchesTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideon", Name: "matches_total", Help: "Total number of ride/chair matches"})
	MatchProbesGiveUp = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideon", Name: "match_probe_exhausted_total", Help: "Matching passes that exhausted all probes without a free chair"})

	NotificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideon", Name: "notifications_delivered_total", Help: "Status events delivered, by channel"},
		[]string{"channel"},
	)

	PaymentRetriesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideon", Name: "payment_retries_total", Help: "Payment gateway call retries"})
	PaymentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideon", Name: "payment_failures_total", Help: "Payment gateway calls that failed after all retries"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideon", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideon",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
