// Package telemetry exposes prometheus metrics for the baseline and
// scoring pipeline.
package telemetry

import (
	"fmt"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clustervis"

// Metrics holds the pipeline collectors and the registry they belong to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	baselinesBuilt  prometheus.Counter
	baselinesReused prometheus.Counter
	featuresSkipped *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	nodesScored     prometheus.Gauge
}

// New returns metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		baselinesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baselines_built_total",
			Help:      "Baselines computed from observations",
		}),
		baselinesReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baselines_reused_total",
			Help:      "Baselines served from the cache",
		}),
		featuresSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "Features dropped from a result, by pipeline phase",
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each pipeline phase",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"phase"}),
		nodesScored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_scored",
			Help:      "Nodes in the most recent score table",
		}),
	}
	m.registry.MustRegister(m.baselinesBuilt, m.baselinesReused, m.featuresSkipped, m.phaseDuration, m.nodesScored)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveBaselines counts built and reused baselines.
func (m *Metrics) ObserveBaselines(built, reused int) {
	if m == nil {
		return
	}
	m.baselinesBuilt.Add(float64(built))
	m.baselinesReused.Add(float64(reused))
}

// ObserveSkipped counts skipped features per phase.
func (m *Metrics) ObserveSkipped(skipped []schema.SkippedFeature) {
	if m == nil {
		return
	}
	for _, s := range skipped {
		m.featuresSkipped.WithLabelValues(string(s.Phase)).Inc()
	}
}

// ObservePhase records the duration of one phase.
func (m *Metrics) ObservePhase(phase schema.Phase, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// ObserveNodes sets the number of scored nodes.
func (m *Metrics) ObserveNodes(n int) {
	if m == nil {
		return
	}
	m.nodesScored.Set(float64(n))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
