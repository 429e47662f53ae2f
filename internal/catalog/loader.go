package catalog

import (
	"context"
	"fmt"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/source"
	"github.com/smallbiznis/songlake/internal/storage"
	"github.com/smallbiznis/songlake/internal/table"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Input  storage.Store `name:"input"`
	Writer *table.Writer
	Log    *zap.Logger
	Config Config `optional:"true"`
}

// Result is what one catalog run read and wrote.
type Result struct {
	Source  source.Stats
	Songs   table.WriteResult
	Artists table.WriteResult
}

type Loader struct {
	input  storage.Store
	writer *table.Writer
	log    *zap.Logger
	cfg    Config
}

func NewLoader(p Params) *Loader {
	return &Loader{
		input:  p.Input,
		writer: p.Writer,
		log:    p.Log.Named("catalog"),
		cfg:    p.Config.withDefaults(),
	}
}

// Load bulk-reads every catalog file matching the configured pattern.
func (l *Loader) Load(ctx context.Context) (*frame.Frame, source.Stats, error) {
	records, stats, err := source.ReadJSONLines(ctx, l.input, l.cfg.Pattern, Schema)
	if err != nil {
		return nil, stats, err
	}
	if stats.Malformed > 0 {
		l.log.Warn("skipped malformed catalog records",
			zap.Int("malformed", stats.Malformed),
			zap.Int("files", stats.Files),
		)
	}
	l.log.Info("catalog loaded",
		zap.String("input", l.input.URI()),
		zap.String("pattern", l.cfg.Pattern),
		zap.Int("files", stats.Files),
		zap.Int("records", stats.Records),
	)
	return records, stats, nil
}

// Run writes songs then artists. Songs is committed before Run returns,
// which is what the activity join depends on.
func (l *Loader) Run(ctx context.Context) (Result, error) {
	var res Result

	records, stats, err := l.Load(ctx)
	res.Source = stats
	if err != nil {
		return res, err
	}

	songs, err := DeriveSongs(records)
	if err != nil {
		return res, err
	}
	if res.Songs, err = l.writer.Write(ctx, SongsTable, songs); err != nil {
		return res, fmt.Errorf("write songs: %w", err)
	}

	artists, err := DeriveArtists(records)
	if err != nil {
		return res, err
	}
	if res.Artists, err = l.writer.Write(ctx, ArtistsTable, artists); err != nil {
		return res, fmt.Errorf("write artists: %w", err)
	}
	return res, nil
}
