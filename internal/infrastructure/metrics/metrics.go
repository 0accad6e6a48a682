package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/semmidev/strata/internal/domain"
)

const namespace = "strata"

// Metrics implements usecase.Recorder with Prometheus collectors.
type Metrics struct {
	cycles            prometheus.Counter
	jobsSubmitted     *prometheus.CounterVec
	jobsRejected      *prometheus.CounterVec
	jobsCompleted     *prometheus.CounterVec
	filesSubmitted    *prometheus.CounterVec
	traversalWarnings prometheus.Counter
	markerAdvanced    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of backup cycles fired",
		}),
		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Backup jobs accepted by the executor",
		}, []string{"type"}),
		jobsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Backup jobs the executor refused",
		}, []string{"type"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Backup jobs that reported a result",
		}, []string{"type", "status"}),
		filesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_submitted_total",
			Help:      "Files included in submitted backup jobs",
		}, []string{"type"}),
		traversalWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversal_warnings_total",
			Help:      "Entries skipped while resolving change sets",
		}),
		markerAdvanced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "marker_advanced_timestamp_seconds",
			Help:      "Unix time a marker of the given type was last advanced",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.cycles,
		m.jobsSubmitted,
		m.jobsRejected,
		m.jobsCompleted,
		m.filesSubmitted,
		m.traversalWarnings,
		m.markerAdvanced,
	)
	return m
}

func (m *Metrics) CycleFired() {
	m.cycles.Inc()
}

func (m *Metrics) JobSubmitted(t domain.BackupType, files int) {
	m.jobsSubmitted.WithLabelValues(t.String()).Inc()
	m.filesSubmitted.WithLabelValues(t.String()).Add(float64(files))
}

func (m *Metrics) JobRejected(t domain.BackupType) {
	m.jobsRejected.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) JobCompleted(t domain.BackupType, ok bool) {
	status := "failure"
	if ok {
		status = "success"
	}
	m.jobsCompleted.WithLabelValues(t.String(), status).Inc()
}

func (m *Metrics) TraversalWarnings(n int) {
	m.traversalWarnings.Add(float64(n))
}

func (m *Metrics) MarkerAdvanced(t domain.BackupType) {
	m.markerAdvanced.WithLabelValues(t.String()).SetToCurrentTime()
}
