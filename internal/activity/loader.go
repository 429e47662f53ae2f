package activity

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/songlake/internal/catalog"
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
	Reader *table.Reader
	Node   *snowflake.Node
	Log    *zap.Logger
	Config Config `optional:"true"`
}

// Result is what one activity run read and wrote.
type Result struct {
	Source    source.Stats
	Plays     int
	Join      frame.JoinStats
	Users     table.WriteResult
	Time      table.WriteResult
	Songplays table.WriteResult
}

type Loader struct {
	input  storage.Store
	writer *table.Writer
	reader *table.Reader
	node   *snowflake.Node
	log    *zap.Logger
	cfg    Config
}

func NewLoader(p Params) *Loader {
	return &Loader{
		input:  p.Input,
		writer: p.Writer,
		reader: p.Reader,
		node:   p.Node,
		log:    p.Log.Named("activity"),
		cfg:    p.Config.withDefaults(),
	}
}

// LoadPlays reads every activity log matching the configured pattern and
// returns the distinct NextSong events.
func (l *Loader) LoadPlays(ctx context.Context) (*frame.Frame, source.Stats, error) {
	events, stats, err := source.ReadJSONLines(ctx, l.input, l.cfg.Pattern, Schema)
	if err != nil {
		return nil, stats, err
	}
	if stats.Malformed > 0 {
		l.log.Warn("skipped malformed activity records",
			zap.Int("malformed", stats.Malformed),
			zap.Int("files", stats.Files),
		)
	}
	plays, err := FilterPlays(events)
	if err != nil {
		return nil, stats, err
	}
	l.log.Info("activity loaded",
		zap.String("input", l.input.URI()),
		zap.String("pattern", l.cfg.Pattern),
		zap.Int("files", stats.Files),
		zap.Int("records", stats.Records),
		zap.Int("plays", plays.Len()),
	)
	return plays, stats, nil
}

// Run writes users, time and songplays. The songs dimension is read back
// from the output store and must already be committed.
func (l *Loader) Run(ctx context.Context) (Result, error) {
	var res Result

	plays, stats, err := l.LoadPlays(ctx)
	res.Source = stats
	if err != nil {
		return res, err
	}
	res.Plays = plays.Len()

	users, err := DeriveUsers(plays)
	if err != nil {
		return res, err
	}
	if res.Users, err = l.writer.Write(ctx, UsersTable, users); err != nil {
		return res, fmt.Errorf("write users: %w", err)
	}

	plays, err = WithStartTime(plays)
	if err != nil {
		return res, err
	}
	times, err := DeriveTime(plays)
	if err != nil {
		return res, err
	}
	if res.Time, err = l.writer.Write(ctx, TimeTable, times); err != nil {
		return res, fmt.Errorf("write time: %w", err)
	}

	songs, err := l.reader.Read(ctx, catalog.SongsTable)
	if err != nil {
		return res, fmt.Errorf("read songs: %w", err)
	}
	facts, join, err := DeriveSongplays(plays, songs, l.nextID)
	res.Join = join
	if err != nil {
		return res, err
	}
	if join.Unmatched > 0 {
		l.log.Warn("plays without a catalog title match were dropped",
			zap.Int("unmatched", join.Unmatched),
			zap.Int("plays", join.LeftRows),
		)
	}
	if res.Songplays, err = l.writer.Write(ctx, SongplaysTable, facts); err != nil {
		return res, fmt.Errorf("write songplays: %w", err)
	}
	return res, nil
}

func (l *Loader) nextID() int64 {
	return l.node.Generate().Int64()
}
