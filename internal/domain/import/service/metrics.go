package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "budget_importer"

// Metrics records import pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	filesAnalyzed  *prometheus.CounterVec
	rowsMapped     prometheus.Counter
	rowErrors      prometheus.Counter
	duplicates     *prometheus.CounterVec
	rowsCommitted  prometheus.Counter
	stageDurations *prometheus.HistogramVec
}

// NewMetrics creates the import metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		filesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_analyzed_total",
			Help:      "Uploads analyzed, by file format and mapping source.",
		}, []string{"format", "mapping_source"}),
		rowsMapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_mapped_total",
			Help:      "Rows successfully mapped to transactions during preview.",
		}),
		rowErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "row_errors_total",
			Help:      "Rows rejected by the row mapper during preview.",
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "duplicates_flagged_total",
			Help:      "Transactions flagged as duplicates, by kind.",
		}, []string{"kind"}),
		rowsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_committed_total",
			Help:      "Transactions written by commits.",
		}),
		stageDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per import operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(m.filesAnalyzed, m.rowsMapped, m.rowErrors, m.duplicates, m.rowsCommitted, m.stageDurations)
	return m
}

func (m *Metrics) observeAnalyze(format string, source MappingSource) {
	if m == nil {
		return
	}
	m.filesAnalyzed.WithLabelValues(format, string(source)).Inc()
}

func (m *Metrics) observePreview(summary Summary) {
	if m == nil {
		return
	}
	m.rowsMapped.Add(float64(summary.Mapped))
	m.rowErrors.Add(float64(summary.Errors))
	m.duplicates.WithLabelValues("existing").Add(float64(summary.Duplicates))
	m.duplicates.WithLabelValues("internal").Add(float64(summary.InternalDuplicates))
}

func (m *Metrics) observeCommit(rows int) {
	if m == nil {
		return
	}
	m.rowsCommitted.Add(float64(rows))
}

func (m *Metrics) observeStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDurations.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
