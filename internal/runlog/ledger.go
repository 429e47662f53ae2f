package runlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/songlake/internal/clock"
	"github.com/smallbiznis/songlake/pkg/db"
	"github.com/smallbiznis/songlake/pkg/db/option"
	"github.com/smallbiznis/songlake/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrRunExists   = errors.New("run_exists")
	ErrRunNotFound = errors.New("run_not_found")
	ErrInvalidRun  = errors.New("invalid_run")
)

// Ledger is the run bookkeeping surface used by the pipeline.
type Ledger interface {
	Start(ctx context.Context, run *PipelineRun) error
	Finish(ctx context.Context, run *PipelineRun) error
	Recent(ctx context.Context, limit int) ([]*PipelineRun, error)
}

type gormLedger struct {
	repo  repository.Repository[PipelineRun]
	clock clock.Clock
}

// NewLedger migrates the pipeline_runs table and returns a ledger on it.
func NewLedger(conn *gorm.DB, clk clock.Clock) (Ledger, error) {
	if err := conn.AutoMigrate(&PipelineRun{}); err != nil {
		return nil, fmt.Errorf("migrate pipeline_runs: %w", err)
	}
	return &gormLedger{repo: repository.ProvideStore[PipelineRun](conn), clock: clk}, nil
}

func (l *gormLedger) Start(ctx context.Context, run *PipelineRun) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRun)
	}
	run.Status = StatusRunning
	if err := l.repo.Create(ctx, run); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %s", ErrRunExists, run.ID)
		}
		return err
	}
	return nil
}

// Finish persists the terminal state of run. FinishedAt defaults to the
// ledger clock.
func (l *gormLedger) Finish(ctx context.Context, run *PipelineRun) error {
	if run.FinishedAt == nil {
		now := l.clock.Now()
		run.FinishedAt = &now
	}
	existing, err := l.repo.FindOne(ctx, &PipelineRun{ID: run.ID})
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return l.repo.Update(ctx, run.ID, map[string]any{
		"status":            run.Status,
		"finished_at":       run.FinishedAt,
		"error":             run.Error,
		"unmatched_plays":   run.UnmatchedPlays,
		"malformed_records": run.MalformedRecords,
		"tables":            datatypes.NewJSONType(run.Tables.Data()),
	})
}

// Recent lists runs newest first. ULIDs sort by start time.
func (l *gormLedger) Recent(ctx context.Context, limit int) ([]*PipelineRun, error) {
	return l.repo.Find(ctx, nil, option.WithOrder("id desc"), option.WithLimit(limit))
}

// Discard is a Ledger that records nothing.
type Discard struct{}

func (Discard) Start(context.Context, *PipelineRun) error { return nil }
func (Discard) Finish(context.Context, *PipelineRun) error { return nil }
func (Discard) Recent(context.Context, int) ([]*PipelineRun, error) { return nil, nil }

var Module = fx.Module("runlog",
	fx.Provide(NewLedger),
)
