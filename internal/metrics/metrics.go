// Package metrics exposes Prometheus instrumentation for plugin load
// outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records one observation per terminal load outcome.
//
// Usage:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	m.ObserveLoad("analytics", "loaded", 120*time.Millisecond)
type Metrics struct {
	// LoadCounter counts terminal load outcomes.
	// Labels: plugin, status (loaded|error|timeout|ignore|inactive)
	LoadCounter *prometheus.CounterVec

	// LoadDuration measures init-to-terminal latency in seconds.
	// Labels: plugin, status
	// Buckets: 10ms to ~10s
	LoadDuration *prometheus.HistogramVec

	// ConsentQueueDepth tracks loads parked awaiting consent.
	ConsentQueueDepth prometheus.Gauge
}

// New creates the metric vectors and registers them with the given
// registerer. Pass prometheus.DefaultRegisterer for the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgate_plugin_loads_total",
				Help: "Terminal plugin load outcomes by status.",
			},
			[]string{"plugin", "status"},
		),
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptgate_plugin_load_duration_seconds",
				Help:    "Latency from load submission to terminal status.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"plugin", "status"},
		),
		ConsentQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptgate_consent_queue_depth",
				Help: "Plugin loads currently parked awaiting consent.",
			},
		),
	}
}

// ObserveLoad records one terminal load outcome.
func (m *Metrics) ObserveLoad(plugin, status string, latency time.Duration) {
	m.LoadCounter.WithLabelValues(plugin, status).Inc()
	m.LoadDuration.WithLabelValues(plugin, status).Observe(latency.Seconds())
}

// SetConsentQueueDepth updates the consent queue gauge.
func (m *Metrics) SetConsentQueueDepth(depth int) {
	m.ConsentQueueDepth.Set(float64(depth))
}
