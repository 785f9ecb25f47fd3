// Package metrics defines the Prometheus metrics recorded by the resolver service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Error kinds recorded in texpolicy_resolution_errors_total.
const (
	KindConfig   = "config"
	KindFacts    = "facts"
	KindStore    = "store"
	KindInternal = "internal"
)

// Metrics holds resolver service metrics.
type Metrics struct {
	Resolutions *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Duration    prometheus.Histogram
}

// NewMetrics creates resolver metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "texpolicy_resolutions_total",
				Help: "Total number of texture resolutions by outcome",
			},
			[]string{"outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "texpolicy_resolution_errors_total",
				Help: "Total number of failed resolutions by error kind",
			},
			[]string{"kind"},
		),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "texpolicy_request_duration_seconds",
			Help:    "Histogram of resolver request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Resolutions, m.Errors, m.Duration)
	return m
}

// NewRegistry returns a private registry with Go and process collectors.
// A private registry keeps test and embedded instances from colliding on the
// global one.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// RecordResolution counts one resolution outcome.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// RecordError counts one failed resolution.
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// ObserveDuration records request latency since start.
func (m *Metrics) ObserveDuration(start time.Time) {
	if m == nil {
		return
	}
	m.Duration.Observe(time.Since(start).Seconds())
}
