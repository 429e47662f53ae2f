package pipeline

import (
	"github.com/smallbiznis/songlake/internal/activity"
	"github.com/smallbiznis/songlake/internal/catalog"
	"github.com/smallbiznis/songlake/internal/config"
	"go.uber.org/fx"
)

func provideConfigs(cfg config.Config) (Config, catalog.Config, activity.Config) {
	run := Config{
		Input:  cfg.Input,
		Output: cfg.Output,
		Job:    cfg.AppName,
	}
	return run, catalog.Config{Pattern: cfg.SongPattern}, activity.Config{Pattern: cfg.LogPattern}
}

var Module = fx.Module("pipeline",
	fx.Provide(
		provideConfigs,
		NewRunner,
	),
)
