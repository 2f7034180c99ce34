// Package metrics records per-run pipeline measurements on a private
// Prometheus registry and exports them in the textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one engine.
type Metrics struct {
	reg *prometheus.Registry

	PhaseDuration *prometheus.HistogramVec
	Nodes         *prometheus.GaugeVec
	Edges         *prometheus.GaugeVec
	Ambiguities   *prometheus.GaugeVec
	CacheLookups  *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	Roles         *prometheus.GaugeVec
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spashta_phase_duration_seconds",
			Help:    "Pipeline phase duration",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"phase"}),
		Nodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spashta_graph_nodes",
			Help: "Nodes in the artifact produced by a stage",
		}, []string{"stage"}),
		Edges: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spashta_graph_edges",
			Help: "Edges in the artifact produced by a stage",
		}, []string{"stage"}),
		Ambiguities: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spashta_graph_ambiguities",
			Help: "Ambiguity tickets in the artifact produced by a stage",
		}, []string{"stage"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spashta_fragment_cache_lookups_total",
			Help: "Fragment cache lookups by language and result",
		}, []string{"language", "result"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spashta_runs_total",
			Help: "Pipeline runs by final status",
		}, []string{"status"}),
		Roles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spashta_semantic_roles",
			Help: "Nodes carrying each semantic role after enrichment",
		}, []string{"role"}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Phase starts timing phase. Call the returned function when it ends.
func (m *Metrics) Phase(phase string) func() {
	start := time.Now()
	return func() {
		m.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

// SetCounts records the size of a stage's artifact.
func (m *Metrics) SetCounts(stage string, nodes, edges, ambiguities int) {
	m.Nodes.WithLabelValues(stage).Set(float64(nodes))
	m.Edges.WithLabelValues(stage).Set(float64(edges))
	m.Ambiguities.WithLabelValues(stage).Set(float64(ambiguities))
}

// CacheLookup counts one fragment cache lookup.
func (m *Metrics) CacheLookup(language string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(language, result).Inc()
}

// SetRoles replaces the semantic role gauges.
func (m *Metrics) SetRoles(counts map[string]int) {
	m.Roles.Reset()
	for role, n := range counts {
		m.Roles.WithLabelValues(role).Set(float64(n))
	}
}

// RunFinished counts a completed run.
func (m *Metrics) RunFinished(status string) {
	m.Runs.WithLabelValues(status).Inc()
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: mkdir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
