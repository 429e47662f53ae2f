// Package catalog derives the songs and artists dimensions from catalog
// metadata records.
package catalog

import (
	"fmt"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/table"
)

// Schema is the shape of one catalog record. Artist fields are
// denormalized onto every song.
var Schema = frame.MustSchema(
	frame.String("artist_id"),
	frame.Float64("artist_latitude"),
	frame.String("artist_location"),
	frame.Float64("artist_longitude"),
	frame.String("artist_name"),
	frame.Float64("duration"),
	frame.Int64("num_songs"),
	frame.String("song_id"),
	frame.String("title"),
	frame.Int64("year"),
)

var SongsTable = table.Table{
	Name: "songs",
	Schema: frame.MustSchema(
		frame.String("song_id"),
		frame.String("title"),
		frame.String("artist_id"),
		frame.Float64("duration"),
		frame.Int64("year"),
	),
	PartitionBy: []string{"year", "artist_id"},
}

var ArtistsTable = table.Table{
	Name: "artists",
	Schema: frame.MustSchema(
		frame.String("artist_id"),
		frame.String("artist_name"),
		frame.String("artist_location"),
		frame.Float64("artist_latitude"),
		frame.Float64("artist_longitude"),
	),
}

// DeriveSongs projects the songs dimension and drops exact duplicates.
func DeriveSongs(records *frame.Frame) (*frame.Frame, error) {
	return project(records, SongsTable)
}

// DeriveArtists projects the artists dimension and drops exact
// duplicates. Two records of the same artist differing in any projected
// field both survive.
func DeriveArtists(records *frame.Frame) (*frame.Frame, error) {
	return project(records, ArtistsTable)
}

func project(records *frame.Frame, t table.Table) (*frame.Frame, error) {
	out, err := records.Select(t.Schema.Names()...)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", t.Name, err)
	}
	return out.Distinct(), nil
}
