// Package metrics exposes Prometheus instrumentation for generation and
// export activity.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records generation and export activity.
type Metrics interface {
	IncGeneration(operation, status string)
	ObserveGenerationDuration(operation string, seconds float64)
	IncExportJob(status string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncGeneration(string, string)              {}
func (Noop) ObserveGenerationDuration(string, float64) {}
func (Noop) IncExportJob(string)                       {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	exportJobs         *prometheus.CounterVec
	once               sync.Once
}

// NewProm builds the collector set under the given namespace.
func NewProm(namespace string) *Prom {
	return &Prom{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Generation requests by operation and outcome",
		}, []string{"operation", "status"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Backend generation latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_jobs_total",
			Help:      "Export jobs by terminal status",
		}, []string{"status"}),
	}
}

// Register adds collectors to the given registry exactly once.
func (p *Prom) Register(reg prometheus.Registerer) {
	p.once.Do(func() {
		reg.MustRegister(p.generations, p.generationDuration, p.exportJobs)
	})
}

func (p *Prom) IncGeneration(operation, status string) {
	p.generations.WithLabelValues(operation, status).Inc()
}

func (p *Prom) ObserveGenerationDuration(operation string, seconds float64) {
	p.generationDuration.WithLabelValues(operation).Observe(seconds)
}

func (p *Prom) IncExportJob(status string) {
	p.exportJobs.WithLabelValues(status).Inc()
}

// Handler returns the scrape endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
