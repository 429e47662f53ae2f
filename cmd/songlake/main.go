package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/songlake/internal/activity"
	"github.com/smallbiznis/songlake/internal/catalog"
	"github.com/smallbiznis/songlake/internal/clock"
	"github.com/smallbiznis/songlake/internal/config"
	"github.com/smallbiznis/songlake/internal/observability"
	"github.com/smallbiznis/songlake/internal/pipeline"
	"github.com/smallbiznis/songlake/internal/runlog"
	"github.com/smallbiznis/songlake/internal/storage"
	"github.com/smallbiznis/songlake/internal/table"
	"github.com/smallbiznis/songlake/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "songlake: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		// Core Infrastructure
		config.Module(cfg),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		storage.Module,
		table.Module,
		ledgerOption(cfg),

		// Functional Domains
		catalog.Module,
		activity.Module,
		pipeline.Module,

		fx.Invoke(RunOnce),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}

// ledgerOption wires the database-backed run ledger, or a no-op ledger
// when RUNLOG_ENABLED is false.
func ledgerOption(cfg config.Config) fx.Option {
	if !cfg.RunLogEnabled {
		return fx.Provide(func() runlog.Ledger { return runlog.Discard{} })
	}
	return fx.Options(db.Module, runlog.Module)
}

// RunOnce starts the pipeline after the app is up and shuts the app down
// with the run's exit code.
func RunOnce(lc fx.Lifecycle, sd fx.Shutdowner, runner *pipeline.Runner, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				rep, err := runner.Run(ctx)
				if err != nil {
					code = 1
				}
				log.Info("songlake finished",
					zap.String("run_id", rep.RunID),
					zap.String("status", string(rep.Status)),
					zap.Int("exit_code", code),
				)
				if err := sd.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
