// Package activity derives the users and time dimensions and the
// songplays fact from user-activity event logs.
package activity

import (
	"fmt"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/table"
)

// PlayPage marks an event as a song play.
const PlayPage = "NextSong"

// Schema is the shape of one activity event.
var Schema = frame.MustSchema(
	frame.String("artist"),
	frame.String("auth"),
	frame.String("firstName"),
	frame.String("gender"),
	frame.Int64("itemInSession"),
	frame.String("lastName"),
	frame.Float64("length"),
	frame.String("level"),
	frame.String("location"),
	frame.String("method"),
	frame.String("page"),
	frame.Float64("registration"),
	frame.Int64("sessionId"),
	frame.String("song"),
	frame.Int64("status"),
	frame.Int64("ts"),
	frame.String("userAgent"),
	frame.String("userId"),
)

var UsersTable = table.Table{
	Name: "users",
	Schema: frame.MustSchema(
		frame.String("user_id"),
		frame.String("first_name"),
		frame.String("last_name"),
		frame.String("gender"),
		frame.String("level"),
	),
}

var TimeTable = table.Table{
	Name: "time",
	Schema: frame.MustSchema(
		frame.Timestamp("start_time"),
		frame.Int64("year"),
		frame.Int64("month"),
		frame.Int64("week"),
		frame.Int64("weekday"),
		frame.Int64("day"),
		frame.Int64("hour"),
		frame.Int64("minute"),
	),
	PartitionBy: []string{"year", "month"},
}

var SongplaysTable = table.Table{
	Name: "songplays",
	Schema: frame.MustSchema(
		frame.Int64("songplay_id"),
		frame.Timestamp("start_time"),
		frame.Int64("year"),
		frame.Int64("month"),
		frame.String("user_id"),
		frame.String("level"),
		frame.String("song_id"),
		frame.String("artist_id"),
		frame.Int64("session_id"),
		frame.String("location"),
		frame.String("user_agent"),
	),
	PartitionBy: []string{"year", "month"},
}

// FilterPlays drops exact duplicate events and keeps song plays only.
func FilterPlays(events *frame.Frame) (*frame.Frame, error) {
	plays, err := events.Distinct().WhereEquals("page", PlayPage)
	if err != nil {
		return nil, fmt.Errorf("filter plays: %w", err)
	}
	return plays, nil
}

// DeriveUsers projects one row per distinct user attribute combination.
// A user whose level changed appears once per level.
func DeriveUsers(plays *frame.Frame) (*frame.Frame, error) {
	users, err := plays.Project(
		frame.Col("userId").As("user_id"),
		frame.Col("firstName").As("first_name"),
		frame.Col("lastName").As("last_name"),
		frame.Col("gender"),
		frame.Col("level"),
	)
	if err != nil {
		return nil, fmt.Errorf("derive users: %w", err)
	}
	return users.Distinct(), nil
}

// StartTime converts epoch milliseconds to a UTC timestamp.
func StartTime(ts int64) time.Time {
	return time.UnixMilli(ts).UTC()
}

// WithStartTime appends start_time computed from ts. A null ts yields a
// null start_time.
func WithStartTime(plays *frame.Frame) (*frame.Frame, error) {
	idx, ok := plays.Schema().Index("ts")
	if !ok {
		return nil, fmt.Errorf("start time: %w: ts", frame.ErrUnknownColumn)
	}
	return plays.WithColumn(frame.Timestamp("start_time"), func(r frame.Row) (any, error) {
		ts, ok := r[idx].(int64)
		if !ok {
			return nil, nil
		}
		return StartTime(ts), nil
	})
}

// DeriveTime builds one row per distinct start_time with its calendar
// fields. plays must already carry start_time.
func DeriveTime(plays *frame.Frame) (*frame.Frame, error) {
	starts, err := plays.Select("start_time")
	if err != nil {
		return nil, fmt.Errorf("derive time: %w", err)
	}
	out := starts.Distinct()
	for _, field := range calendarFields {
		if out, err = withCalendarField(out, field.name, field.of); err != nil {
			return nil, fmt.Errorf("derive time: %w", err)
		}
	}
	return out, nil
}

// DeriveSongplays joins plays against songs on play title and projects
// the fact columns. Plays whose song matches no catalog title are
// dropped; a title shared by several songs yields one fact row per song.
// nextID is called once per play, before the join, in play order.
func DeriveSongplays(plays, songs *frame.Frame, nextID func() int64) (*frame.Frame, frame.JoinStats, error) {
	var stats frame.JoinStats

	withID, err := plays.WithRowID("songplay_id", nextID)
	if err != nil {
		return nil, stats, fmt.Errorf("derive songplays: %w", err)
	}
	joined, stats, err := withID.InnerJoin(songs, "song", "title")
	if err != nil {
		return nil, stats, fmt.Errorf("derive songplays: %w", err)
	}

	// year is re-derived from start_time, replacing the song's release year.
	for _, name := range []string{"year", "month"} {
		field := calendarField(name)
		if joined, err = withCalendarField(joined, field.name, field.of); err != nil {
			return nil, stats, fmt.Errorf("derive songplays: %w", err)
		}
	}

	facts, err := joined.Project(
		frame.Col("songplay_id"),
		frame.Col("start_time"),
		frame.Col("year"),
		frame.Col("month"),
		frame.Col("userId").As("user_id"),
		frame.Col("level"),
		frame.Col("song_id"),
		frame.Col("artist_id"),
		frame.Col("sessionId").As("session_id"),
		frame.Col("location"),
		frame.Col("userAgent").As("user_agent"),
	)
	if err != nil {
		return nil, stats, fmt.Errorf("derive songplays: %w", err)
	}
	return facts.Distinct(), stats, nil
}
