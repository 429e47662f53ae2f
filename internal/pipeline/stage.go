package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/songlake/internal/source"
	"github.com/smallbiznis/songlake/internal/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	StageCatalog  = "catalog"
	StageActivity = "activity"
)

// runStage runs fn under its own span, timing it and tagging failures
// with the stage name.
func (r *Runner) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "pipeline."+stage,
		trace.WithAttributes(attribute.String("stage", stage)),
	)
	defer span.End()

	start := r.clock.Now()
	log := r.logger(ctx).With(zap.String("stage", stage))
	log.Info("pipeline.stage.start")

	err := fn(ctx)
	elapsed := r.clock.Since(start)
	r.metrics.ObserveStageDuration(stage, elapsed)
	if err == nil {
		log.Info("pipeline.stage.finish", zap.Int64("duration_ms", elapsed.Milliseconds()))
		return nil
	}

	reason := classifyError(err)
	r.metrics.IncStageError(stage, reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	log.Error("pipeline.stage.failed",
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("error_type", reason),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", stage, err)
}

// classifyError maps err to a low-cardinality metric label.
func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, source.ErrSourceRead):
		return "source_read"
	case errors.Is(err, table.ErrTableNotCommitted):
		return "not_committed"
	case errors.Is(err, table.ErrSinkWrite):
		return "sink_write"
	case errors.Is(err, table.ErrTableRead):
		return "table_read"
	case errors.Is(err, table.ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "unknown"
	}
}
