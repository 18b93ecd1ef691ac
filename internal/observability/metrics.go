// Package observability holds the Prometheus metrics for the analysis
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts analyses and measures the one stage with external latency,
// the imagery fetch.
type Metrics struct {
	AnalysesTotal  *prometheus.CounterVec // labels: outcome={ok,error}
	FetchDuration  prometheus.Histogram
	CacheLookups   *prometheus.CounterVec // labels: result={hit,miss}
	PixelsAssessed prometheus.Counter
}

// NewMetrics creates the metric set. Register attaches it to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burnsight",
			Name:      "analyses_total",
			Help:      "Completed burn-severity analyses by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "burnsight",
			Name:      "imagery_fetch_duration_seconds",
			Help:      "Duration of imagery provider fetches.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burnsight",
			Name:      "imagery_cache_lookups_total",
			Help:      "Imagery cache lookups by result.",
		}, []string{"result"}),
		PixelsAssessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "burnsight",
			Name:      "pixels_assessed_total",
			Help:      "Total pixels run through severity classification.",
		}),
	}
}

// Register adds all metrics to the registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		m.AnalysesTotal, m.FetchDuration, m.CacheLookups, m.PixelsAssessed,
	} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
