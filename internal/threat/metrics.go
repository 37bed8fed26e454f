package threat

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	ClaimsTotal       *prometheus.CounterVec
	ActorsCreated     *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	RunRecords        *prometheus.HistogramVec
	ReclassifiedTotal *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClaimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomfuse_claims_total",
			Help: "Claims processed by source and outcome.",
		}, []string{"source", "outcome"}),
		ActorsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomfuse_actors_created_total",
			Help: "Threat actors created on first sighting, by source.",
		}, []string{"source"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomfuse_runs_total",
			Help: "Adapter runs by source and final status.",
		}, []string{"source", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ransomfuse_run_duration_seconds",
			Help:    "Duration of adapter runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s .. ~17m
		}, []string{"source"}),
		RunRecords: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ransomfuse_run_records",
			Help:    "Claims processed per adapter run.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10 .. ~20480
		}, []string{"source"}),
		ReclassifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomfuse_reclassified_total",
			Help: "Incidents visited by reclassification, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ClaimsTotal,
		m.ActorsCreated,
		m.RunsTotal,
		m.RunDuration,
		m.RunRecords,
		m.ReclassifiedTotal,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnClaim: func(source string, o Outcome) {
			m.ClaimsTotal.WithLabelValues(source, string(o)).Inc()
		},
		OnActorCreated: func(source string) {
			m.ActorsCreated.WithLabelValues(source).Inc()
		},
		OnRun: func(s *RunStats) {
			m.RunsTotal.WithLabelValues(s.Source, string(s.Status)).Inc()
			m.RunDuration.WithLabelValues(s.Source).Observe(s.Duration().Seconds())
			m.RunRecords.WithLabelValues(s.Source).Observe(float64(s.Processed))
		},
		OnReclassify: func(changed bool) {
			result := "unchanged"
			if changed {
				result = "changed"
			}
			m.ReclassifiedTotal.WithLabelValues(result).Inc()
		},
	}
}
