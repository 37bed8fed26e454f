package feeds

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for upstream feed requests.
type Metrics struct {
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns feed metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomfuse_feed_fetches_total",
			Help: "Feed requests by upstream host and outcome.",
		}, []string{"host", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ransomfuse_feed_fetch_duration_seconds",
			Help:    "Duration of feed requests in seconds by host and outcome, including rate-limit waits.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"host", "outcome"}),
	}
	reg.MustRegister(m.FetchesTotal, m.FetchDuration)
	return m
}

// OnFetch returns a callback for FetcherOptions.OnFetch.
func (m *Metrics) OnFetch() func(host, outcome string, dur time.Duration) {
	return func(host, outcome string, dur time.Duration) {
		m.FetchesTotal.WithLabelValues(host, outcome).Inc()
		m.FetchDuration.WithLabelValues(host, outcome).Observe(dur.Seconds())
	}
}
