// Package pipeline sequences the catalog and activity loaders into one
// run and records what the run did.
package pipeline

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/songlake/internal/activity"
	"github.com/smallbiznis/songlake/internal/catalog"
	"github.com/smallbiznis/songlake/internal/clock"
	obslogger "github.com/smallbiznis/songlake/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/songlake/internal/observability/metrics"
	"github.com/smallbiznis/songlake/internal/runlog"
	"github.com/smallbiznis/songlake/internal/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Catalog  *catalog.Loader
	Activity *activity.Loader
	Ledger   runlog.Ledger               `optional:"true"`
	Metrics  *obsmetrics.PipelineMetrics `optional:"true"`
	OTel     *obsmetrics.Metrics         `optional:"true"`
	Tracer   trace.TracerProvider        `optional:"true"`
	Clock    clock.Clock
	Log      *zap.Logger
	Config   Config `optional:"true"`
}

// Report summarizes one run.
type Report struct {
	RunID      string
	Status     runlog.Status
	StartedAt  time.Time
	FinishedAt time.Time
	Catalog    catalog.Result
	Activity   activity.Result
	Unmatched  int
	Malformed  int
	Tables     []table.WriteResult
	Err        error
}

type Runner struct {
	catalog  *catalog.Loader
	activity *activity.Loader
	ledger   runlog.Ledger
	metrics  *obsmetrics.PipelineMetrics
	otel     *obsmetrics.Metrics
	tracer   trace.Tracer
	clock    clock.Clock
	log      *zap.Logger
	cfg      Config
}

func NewRunner(p Params) *Runner {
	ledger := p.Ledger
	if ledger == nil {
		ledger = runlog.Discard{}
	}
	tp := p.Tracer
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Runner{
		catalog:  p.Catalog,
		activity: p.Activity,
		ledger:   ledger,
		metrics:  p.Metrics,
		otel:     p.OTel,
		tracer:   tp.Tracer("songlake/pipeline"),
		clock:    p.Clock,
		log:      p.Log.Named("pipeline"),
		cfg:      p.Config.withDefaults(),
	}
}

func (r *Runner) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, r.log)
}

// Run executes the catalog stage and then the activity stage. The
// activity stage never starts when the catalog stage failed, since it
// depends on the committed songs table.
func (r *Runner) Run(parent context.Context) (Report, error) {
	started := r.clock.Now()
	runID := ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String()
	rep := Report{RunID: runID, Status: runlog.StatusRunning, StartedAt: started}

	ctx := obslogger.ContextWithRunID(parent, runID)
	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", runID)),
	)
	defer span.End()

	log := r.logger(ctx)
	log.Info("pipeline.run.start",
		zap.String("job", r.cfg.Job),
		zap.String("input", r.cfg.Input),
		zap.String("output", r.cfg.Output),
	)

	r.logPreviousRun(ctx)

	entry := &runlog.PipelineRun{
		ID:        runID,
		Input:     r.cfg.Input,
		Output:    r.cfg.Output,
		StartedAt: started,
	}
	if err := r.ledger.Start(ctx, entry); err != nil {
		log.Warn("run ledger start failed", zap.Error(err))
	}

	err := r.runStage(ctx, StageCatalog, func(ctx context.Context) error {
		var err error
		rep.Catalog, err = r.catalog.Run(ctx)
		return err
	})
	if err == nil {
		err = r.runStage(ctx, StageActivity, func(ctx context.Context) error {
			var err error
			rep.Activity, err = r.activity.Run(ctx)
			return err
		})
	}

	rep.FinishedAt = r.clock.Now()
	rep.Err = err
	rep.Status = runlog.StatusSucceeded
	if err != nil {
		rep.Status = runlog.StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, classifyError(err))
	}
	rep.Unmatched = rep.Activity.Join.Unmatched
	rep.Malformed = rep.Catalog.Source.Malformed + rep.Activity.Source.Malformed
	rep.Tables = writtenTables(rep)

	r.record(ctx, rep)
	r.finishLedger(ctx, entry, rep)

	fields := []zap.Field{
		zap.String("job", r.cfg.Job),
		zap.String("status", string(rep.Status)),
		zap.Int64("duration_ms", rep.FinishedAt.Sub(rep.StartedAt).Milliseconds()),
		zap.Int("malformed", rep.Malformed),
		zap.Int("unmatched", rep.Unmatched),
	}
	for _, t := range rep.Tables {
		fields = append(fields, zap.Int(t.Table+"_rows", t.Rows))
	}
	if err != nil {
		log.Error("pipeline.run.finish", append(fields, zap.Error(err))...)
		return rep, err
	}
	log.Info("pipeline.run.finish", fields...)
	return rep, nil
}

// writtenTables lists the tables committed by this run in write order.
func writtenTables(rep Report) []table.WriteResult {
	all := []table.WriteResult{
		rep.Catalog.Songs,
		rep.Catalog.Artists,
		rep.Activity.Users,
		rep.Activity.Time,
		rep.Activity.Songplays,
	}
	out := make([]table.WriteResult, 0, len(all))
	for _, t := range all {
		if t.Table != "" {
			out = append(out, t)
		}
	}
	return out
}

func (r *Runner) record(ctx context.Context, rep Report) {
	for _, t := range rep.Tables {
		r.metrics.AddRowsWritten(t.Table, t.Rows)
		r.otel.RecordFilesWritten(ctx, t.Table, t.Files)
	}
	r.metrics.AddMalformed(StageCatalog, rep.Catalog.Source.Malformed)
	r.metrics.AddMalformed(StageActivity, rep.Activity.Source.Malformed)
	r.otel.RecordRecordsRead(ctx, StageCatalog, rep.Catalog.Source.Records)
	r.otel.RecordRecordsRead(ctx, StageActivity, rep.Activity.Source.Records)
	r.metrics.AddUnmatched(rep.Unmatched)

	status := obsmetrics.RunStatusSuccess
	if rep.Err != nil {
		status = obsmetrics.RunStatusFailed
	}
	r.metrics.IncRun(status)
	if err := r.metrics.Push(ctx, r.cfg.Job, rep.RunID); err != nil {
		r.logger(ctx).Warn("pushgateway push failed", zap.Error(err))
	}
}

// logPreviousRun reports the last recorded run so an operator can see
// whether it finished before this one started.
func (r *Runner) logPreviousRun(ctx context.Context) {
	log := r.logger(ctx)
	runs, err := r.ledger.Recent(ctx, 1)
	if err != nil {
		log.Warn("run ledger lookup failed", zap.Error(err))
		return
	}
	if len(runs) == 0 {
		return
	}
	prev := runs[0]
	fields := []zap.Field{
		zap.String("previous_run_id", prev.ID),
		zap.String("previous_status", string(prev.Status)),
		zap.Time("previous_started_at", prev.StartedAt),
		zap.Int("previous_unmatched", prev.UnmatchedPlays),
	}
	if prev.FinishedAt != nil {
		fields = append(fields, zap.Time("previous_finished_at", *prev.FinishedAt))
	}
	if prev.Status == runlog.StatusRunning {
		log.Warn("pipeline.previous_run", fields...)
		return
	}
	log.Info("pipeline.previous_run", fields...)
}

func (r *Runner) finishLedger(ctx context.Context, entry *runlog.PipelineRun, rep Report) {
	finished := rep.FinishedAt
	entry.Status = rep.Status
	entry.FinishedAt = &finished
	entry.UnmatchedPlays = rep.Unmatched
	entry.MalformedRecords = rep.Malformed
	if rep.Err != nil {
		entry.Error = rep.Err.Error()
	}
	counts := make([]runlog.TableCount, 0, len(rep.Tables))
	for _, t := range rep.Tables {
		counts = append(counts, runlog.TableCount{
			Table:      t.Table,
			Rows:       t.Rows,
			Partitions: t.Partitions,
			Files:      t.Files,
		})
	}
	entry.Tables = datatypes.NewJSONType(counts)
	if err := r.ledger.Finish(ctx, entry); err != nil {
		r.logger(ctx).Warn("run ledger finish failed", zap.Error(err))
	}
}
