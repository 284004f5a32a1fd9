package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoshare_http_requests_total",
		Help: "Total number of HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photoshare_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	AuthEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoshare_auth_events_total",
		Help: "Authentication events by kind and outcome.",
	}, []string{"event", "outcome"})

	OrphanAssetsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photoshare_orphan_assets_recorded_total",
		Help: "Image host assets whose deletion failed and were queued for retry.",
	})

	OrphanAssetsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photoshare_orphan_assets_reaped_total",
		Help: "Queued image host assets deleted by the reaper.",
	})
)

// RecordAuth counts an authentication event.
func RecordAuth(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}
