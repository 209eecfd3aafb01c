// Package observability exports the outcome of a validation run as
// Prometheus metrics in the node_exporter textfile format.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

const metricsNamespace = "stalecheck"

// Metrics holds the gauges describing one run. Each instance owns its
// registry so several runs in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Reads by outcome: processed, stale, pruned.
	Reads *prometheus.GaugeVec
	// ReadsByOpType splits Reads per opType.
	ReadsByOpType *prometheus.GaugeVec
	Writes        prometheus.Gauge
	// Sessions by state: seen, stale.
	Sessions       *prometheus.GaugeVec
	StalenessRatio prometheus.Gauge
	// PhaseSeconds by phase: update, validate, total.
	PhaseSeconds *prometheus.GaugeVec
}

func NewMetrics(machineID int) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(
		prometheus.Labels{"machine_id": strconv.Itoa(machineID)}, reg))

	return &Metrics{
		registry: reg,
		Reads: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "reads",
			Help:      "Reads by validation outcome.",
		}, []string{"outcome"}),
		ReadsByOpType: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "reads_by_optype",
			Help:      "Reads by operation type and validation outcome.",
		}, []string{"optype", "outcome"}),
		Writes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "writes",
			Help:      "Write records ingested into the timelines.",
		}),
		Sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions",
			Help:      "Read sessions by state.",
		}, []string{"state"}),
		StalenessRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "staleness_ratio",
			Help:      "Stale reads over all reads.",
		}),
		PhaseSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent per phase.",
		}, []string{"phase"}),
	}
}

// ObserveReport sets every gauge from r.
func (m *Metrics) ObserveReport(r engine.Report) {
	m.Reads.WithLabelValues("processed").Set(float64(r.NumProcessed))
	m.Reads.WithLabelValues("stale").Set(float64(r.NumStaleOps))
	m.Reads.WithLabelValues("pruned").Set(float64(r.NumPruned))
	for op, s := range r.ByOpType {
		m.ReadsByOpType.WithLabelValues(op, "processed").Set(float64(s.Processed))
		m.ReadsByOpType.WithLabelValues(op, "stale").Set(float64(s.Stale))
		m.ReadsByOpType.WithLabelValues(op, "pruned").Set(float64(s.Pruned))
	}
	m.Writes.Set(float64(r.NumWriteOps))
	m.Sessions.WithLabelValues("seen").Set(float64(r.NumReadSessions))
	m.Sessions.WithLabelValues("stale").Set(float64(r.NumStaleSessions))
	m.StalenessRatio.Set(r.StalenessRatio)
	m.PhaseSeconds.WithLabelValues("update").Set(float64(r.UpdateProcessingTime) / 1000)
	m.PhaseSeconds.WithLabelValues("validate").Set(float64(r.ReadValidationTime) / 1000)
	m.PhaseSeconds.WithLabelValues("total").Set(float64(r.ValidationTime) / 1000)
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return xerrors.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
