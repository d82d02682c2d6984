// internal/metrics/prometheus.go
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	promOnce     sync.Once
	promRegistry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
)

func initProm() {
	promOnce.Do(func() {
		promRegistry = prometheus.NewRegistry()

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "requests_total",
			Help:      "Chat requests by outcome and error category.",
		}, []string{"outcome", "category"})

		requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "request_duration_seconds",
			Help:      "End-to-end chat request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		})

		promRegistry.MustRegister(requestsTotal, requestDuration)
	})
}

func observeRequest(success bool, responseTime time.Duration, errCategory string) {
	initProm()
	outcome := "success"
	category := "none"
	if !success {
		outcome = "failure"
		if errCategory != "" {
			category = errCategory
		}
	}
	requestsTotal.WithLabelValues(outcome, category).Inc()
	requestDuration.Observe(responseTime.Seconds())
}

// Handler serves the Prometheus exposition endpoint for the web server.
func Handler() http.Handler {
	initProm()
	return promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
}
