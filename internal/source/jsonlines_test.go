package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = frame.MustSchema(
	frame.String("song_id"),
	frame.String("title"),
	frame.Int64("year"),
	frame.Float64("artist_latitude"),
)

func localStore(t *testing.T, files map[string]string) storage.Store {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	store, err := storage.NewLocal(root)
	require.NoError(t, err)
	return store
}

func TestReadJSONLinesCoercesAndSkipsMalformed(t *testing.T) {
	store := localStore(t, map[string]string{
		"song_data/A/a.json": `{"song_id": "S1", "title": "Song A", "year": 2018, "artist_latitude": null, "extra": [1]}`,
		"song_data/B/b.json": "{\"song_id\": \"S2\", \"title\": \"Song B\", \"year\": \"0\", \"artist_latitude\": 35.5}\n\n{not json}\n" +
			`{"song_id": "S3", "year": {"bad": true}}` + "\n" +
			`{"song_id": "S4"}`,
	})

	f, stats, err := ReadJSONLines(context.Background(), store, "song_data/*/*.json", testSchema)
	require.NoError(t, err)

	assert.Equal(t, Stats{Files: 2, Records: 3, Malformed: 2}, stats)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, frame.Row{"S1", "Song A", int64(2018), nil}, f.Row(0))
	assert.Equal(t, frame.Row{"S2", "Song B", int64(0), 35.5}, f.Row(1))
	assert.Equal(t, frame.Row{"S4", nil, nil, nil}, f.Row(2))
}

func TestReadJSONLinesFailures(t *testing.T) {
	ctx := context.Background()

	empty := localStore(t, map[string]string{"other/x.json": "{}"})
	_, _, err := ReadJSONLines(ctx, empty, "song_data/*.json", testSchema)
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("expected source read error for no matches, got %v", err)
	}

	garbage := localStore(t, map[string]string{"song_data/x.json": "nope\n[1,2]\n"})
	_, stats, err := ReadJSONLines(ctx, garbage, "song_data/*.json", testSchema)
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.Equal(t, 2, stats.Malformed)

	missing, err := storage.NewLocal(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	_, _, err = ReadJSONLines(ctx, missing, "*.json", testSchema)
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestCoerceTimestampFromMillis(t *testing.T) {
	store := localStore(t, map[string]string{"e.json": `{"ts": 1541548796000}`})
	f, _, err := ReadJSONLines(context.Background(), store, "*.json", frame.MustSchema(frame.Timestamp("ts")))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 11, 6, 23, 59, 56, 0, time.UTC), f.Row(0)[0])
}
