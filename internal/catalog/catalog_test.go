package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/source"
	"github.com/smallbiznis/songlake/internal/storage"
	"github.com/smallbiznis/songlake/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const songA = `{"num_songs": 1, "artist_id": "ARJIE2Y1187B994AB7", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Line Renaud", "song_id": "SOUPIRU12A6D4FA1E1", "title": "Der Kleine Dompfaff", "duration": 152.92036, "year": 0}`
const songB = `{"num_songs": 1, "artist_id": "ARDR4AC1187FB371A1", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "Montserrat Caballé;Placido Domingo", "song_id": "SOBAYLL12A8C138AF9", "title": "Sono andati? Fingevo di dormire", "duration": 511.16363, "year": 1991}`

func records(t *testing.T, rows ...frame.Row) *frame.Frame {
	t.Helper()
	f, err := frame.New(Schema, rows)
	require.NoError(t, err)
	return f
}

func TestDeriveSongsDropsExactDuplicatesOnly(t *testing.T) {
	in := records(t,
		frame.Row{"AR1", 1.0, "X", 2.0, "Artist", 100.5, int64(1), "SO1", "Title", int64(2000)},
		frame.Row{"AR1", 9.0, "Y", 8.0, "Artist", 100.5, int64(1), "SO1", "Title", int64(2000)},
		frame.Row{"AR1", 1.0, "X", 2.0, "Artist", 100.6, int64(1), "SO1", "Title", int64(2000)},
	)

	songs, err := DeriveSongs(in)
	require.NoError(t, err)
	assert.True(t, songs.Schema().Equal(SongsTable.Schema))
	assert.Equal(t, []frame.Row{
		{"SO1", "Title", "AR1", 100.5, int64(2000)},
		{"SO1", "Title", "AR1", 100.6, int64(2000)},
	}, songs.Rows())

	artists, err := DeriveArtists(in)
	require.NoError(t, err)
	assert.True(t, artists.Schema().Equal(ArtistsTable.Schema))
	assert.Equal(t, 2, artists.Len())

	again, err := DeriveArtists(in)
	require.NoError(t, err)
	assert.Equal(t, artists.Rows(), again.Distinct().Rows())
}

func TestTablesAreValid(t *testing.T) {
	require.NoError(t, SongsTable.Validate())
	require.NoError(t, ArtistsTable.Validate())
}

func newLoader(t *testing.T) (*Loader, storage.Store, storage.Store) {
	t.Helper()
	in, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	out, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	l := NewLoader(Params{
		Input:  in,
		Writer: table.NewWriter(out, zap.NewNop()),
		Log:    zap.NewNop(),
	})
	return l, in, out
}

func TestRunWritesSongsAndArtists(t *testing.T) {
	ctx := context.Background()
	l, in, out := newLoader(t)
	require.NoError(t, in.Write(ctx, "song_data/A/A/A/TRAAAAW128F429D538.json", []byte(songA+"\n")))
	require.NoError(t, in.Write(ctx, "song_data/A/B/C/TRABCEI128F424C983.json", []byte(songB+"\n")))
	require.NoError(t, in.Write(ctx, "song_data/A/B/C/broken.json", []byte("{not json\n")))
	require.NoError(t, in.Write(ctx, "song_data/A/B/notes.txt", []byte("ignored")))

	res, err := l.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, source.Stats{Files: 3, Records: 2, Malformed: 1}, res.Source)
	assert.Equal(t, 2, res.Songs.Rows)
	assert.Equal(t, 2, res.Songs.Partitions)
	assert.Equal(t, 2, res.Artists.Rows)

	keys, err := out.List(ctx, "songs")
	require.NoError(t, err)
	assert.Contains(t, keys, "songs/_SUCCESS")

	songs, err := table.NewReader(out).Read(ctx, SongsTable)
	require.NoError(t, err)
	byID := map[string]frame.Row{}
	for _, r := range songs.Rows() {
		byID[r[0].(string)] = r
	}
	assert.Equal(t, frame.Row{"SOUPIRU12A6D4FA1E1", "Der Kleine Dompfaff", "ARJIE2Y1187B994AB7", 152.92036, int64(0)}, byID["SOUPIRU12A6D4FA1E1"])
	assert.Equal(t, frame.Row{"SOBAYLL12A8C138AF9", "Sono andati? Fingevo di dormire", "ARDR4AC1187FB371A1", 511.16363, int64(1991)}, byID["SOBAYLL12A8C138AF9"])

	artists, err := table.NewReader(out).Read(ctx, ArtistsTable)
	require.NoError(t, err)
	assert.Equal(t, 2, artists.Len())
}

func TestRunFailsWithoutInput(t *testing.T) {
	l, _, out := newLoader(t)
	_, err := l.Run(context.Background())
	if !errors.Is(err, source.ErrSourceRead) {
		t.Fatalf("expected source read error, got %v", err)
	}

	keys, err := out.List(context.Background(), "songs")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
