package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// PipelineMetrics holds the batch job signals in a private registry that
// is pushed to a Pushgateway after each run.
type PipelineMetrics struct {
	registry      *prometheus.Registry
	pushURL       string
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	rowsWritten   *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	unmatched     prometheus.Counter
}

func NewPipelineMetrics(cfg Config) *PipelineMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "songlake"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "songlake_pipeline_runs_total",
		Help:        "Pipeline runs by final status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "songlake_pipeline_stage_duration_seconds",
		Help:        "Wall time of each pipeline stage.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		ConstLabels: constLabels,
	}, []string{"stage"})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "songlake_pipeline_stage_errors_total",
		Help:        "Pipeline stage failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	rowsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "songlake_table_rows_written_total",
		Help:        "Rows written per output table.",
		ConstLabels: constLabels,
	}, []string{"table"})
	malformed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "songlake_source_malformed_records_total",
		Help:        "Input lines skipped because they did not parse.",
		ConstLabels: constLabels,
	}, []string{"source"})
	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "songlake_songplays_unmatched_total",
		Help:        "Song plays dropped because no catalog title matched.",
		ConstLabels: constLabels,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(runs, stageDuration, stageErrors, rowsWritten, malformed, unmatched)

	return &PipelineMetrics{
		registry:      registry,
		pushURL:       strings.TrimSpace(cfg.PushgatewayURL),
		runs:          runs,
		stageDuration: stageDuration,
		stageErrors:   stageErrors,
		rowsWritten:   rowsWritten,
		malformed:     malformed,
		unmatched:     unmatched,
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *PipelineMetrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) ObserveStageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) IncStageError(stage, reason string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, reason).Inc()
}

func (m *PipelineMetrics) AddRowsWritten(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWritten.WithLabelValues(table).Add(float64(n))
}

func (m *PipelineMetrics) AddMalformed(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.malformed.WithLabelValues(source).Add(float64(n))
}

func (m *PipelineMetrics) AddUnmatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmatched.Add(float64(n))
}

// Push sends the registry to the configured Pushgateway under job,
// grouped by run id. It is a no-op without a Pushgateway URL.
func (m *PipelineMetrics) Push(ctx context.Context, job, runID string) error {
	if m == nil || m.pushURL == "" {
		return nil
	}
	pusher := push.New(m.pushURL, job).Gatherer(m.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	return pusher.PushContext(ctx)
}
