package table

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var playsTable = Table{
	Name: "plays",
	Schema: frame.MustSchema(
		frame.Int64("id"),
		frame.Timestamp("start_time"),
		frame.Int64("year"),
		frame.String("artist_id"),
		frame.Float64("duration"),
		frame.Bool("paid"),
	),
	PartitionBy: []string{"year", "artist_id"},
}

var flatTable = Table{
	Name:   "flat",
	Schema: frame.MustSchema(frame.String("k"), frame.String("v")),
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return s
}

func playsFrame(t *testing.T) *frame.Frame {
	t.Helper()
	ts := time.Date(2018, 11, 6, 21, 33, 16, 123*int(time.Millisecond), time.UTC)
	f, err := frame.New(playsTable.Schema, []frame.Row{
		{int64(1), ts, int64(2018), "AR1", 218.93, true},
		{int64(1), ts, int64(2018), "AR1", 218.93, true},
		{int64(2), ts, int64(2018), "AR/2:x", nil, false},
		{int64(3), nil, int64(0), "AR1", 1.5, nil},
		{int64(4), ts, nil, "", 2.0, true},
	})
	require.NoError(t, err)
	return f
}

func TestEscapePathNameRoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "a/b", "k=v", "50%", "x:y?z", "tab\tend", "ü"} {
		escaped := escapePathName(s)
		assert.NotContains(t, escaped, "/")
		assert.Equal(t, s, unescapePathName(escaped), s)
	}
	assert.Equal(t, "AR%2F2%3Ax", escapePathName("AR/2:x"))
}

func TestPartitionDir(t *testing.T) {
	cols := playsTable.partitionColumns()
	assert.Equal(t, "year=2018/artist_id=AR1", partitionDir(cols, []any{int64(2018), "AR1"}))
	assert.Equal(t, "year=__HIVE_DEFAULT_PARTITION__/artist_id=__HIVE_DEFAULT_PARTITION__", partitionDir(cols, []any{nil, ""}))
}

func TestValidate(t *testing.T) {
	bad := Table{Name: "x", Schema: frame.MustSchema(frame.String("a")), PartitionBy: []string{"a"}}
	assert.ErrorIs(t, bad.Validate(), ErrSchemaMismatch)
	missing := Table{Name: "x", Schema: frame.MustSchema(frame.String("a"), frame.String("b")), PartitionBy: []string{"c"}}
	assert.ErrorIs(t, missing.Validate(), ErrSchemaMismatch)
	require.NoError(t, playsTable.Validate())
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := NewWriter(store, zap.NewNop())

	res, err := w.Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Table: "plays", Rows: 4, Partitions: 4, Files: 4}, res)

	keys, err := store.List(ctx, "plays")
	require.NoError(t, err)
	assert.Contains(t, keys, "plays/_SUCCESS")

	got, err := NewReader(store).Read(ctx, playsTable)
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())

	byID := map[int64]frame.Row{}
	for _, r := range got.Rows() {
		byID[r[0].(int64)] = r
	}
	ts := time.Date(2018, 11, 6, 21, 33, 16, 123*int(time.Millisecond), time.UTC)
	assert.Equal(t, frame.Row{int64(1), ts, int64(2018), "AR1", 218.93, true}, byID[1])
	assert.Equal(t, frame.Row{int64(2), ts, int64(2018), "AR/2:x", nil, false}, byID[2])
	assert.Equal(t, frame.Row{int64(3), nil, int64(0), "AR1", 1.5, nil}, byID[3])
	// empty string partition values come back as null
	assert.Equal(t, frame.Row{int64(4), ts, nil, nil, 2.0, true}, byID[4])
}

func TestPartitionCompleteness(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := NewWriter(store, nil).Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)

	keys, err := store.List(ctx, "plays")
	require.NoError(t, err)
	for _, k := range keys {
		if strings.HasSuffix(k, SuccessMarker) {
			continue
		}
		data, err := store.Read(ctx, k)
		require.NoError(t, err)
		rows, err := decodeParquet(data, playsTable.FileSchema())
		require.NoError(t, err)
		pvals, err := parsePartitionPath(playsTable.partitionColumns(), strings.TrimPrefix(k, "plays/"))
		require.NoError(t, err)
		for _, r := range rows {
			switch r[0].(int64) {
			case 1:
				assert.Equal(t, []any{int64(2018), "AR1"}, pvals, k)
			case 2:
				assert.Equal(t, []any{int64(2018), "AR/2:x"}, pvals, k)
			case 3:
				assert.Equal(t, []any{int64(0), "AR1"}, pvals, k)
			case 4:
				assert.Equal(t, []any{nil, nil}, pvals, k)
			default:
				t.Fatalf("unexpected row %v in %s", r, k)
			}
		}
	}
}

func TestWriteOverwritesPreviousOutput(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := NewWriter(store, nil)

	_, err := w.Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)
	first, err := store.List(ctx, "plays")
	require.NoError(t, err)

	_, err = w.Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)
	second, err := store.List(ctx, "plays")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	smaller, err := frame.New(playsTable.Schema, []frame.Row{
		{int64(9), nil, int64(1999), "AR9", nil, nil},
	})
	require.NoError(t, err)
	_, err = w.Write(ctx, playsTable, smaller)
	require.NoError(t, err)

	got, err := NewReader(store).Read(ctx, playsTable)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, int64(9), got.Row(0)[0])
}

func TestWriteIsByteStableAcrossReruns(t *testing.T) {
	ctx := context.Background()
	a, b := newStore(t), newStore(t)
	_, err := NewWriter(a, nil).Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)
	_, err = NewWriter(b, nil).Write(ctx, playsTable, playsFrame(t))
	require.NoError(t, err)

	keysA, err := a.List(ctx, "plays")
	require.NoError(t, err)
	keysB, err := b.List(ctx, "plays")
	require.NoError(t, err)
	require.Equal(t, keysA, keysB)
	for _, k := range keysA {
		da, err := a.Read(ctx, k)
		require.NoError(t, err)
		db, err := b.Read(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, da, db, k)
	}
}

func TestEmptyTableWritesOnlyMarker(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	res, err := NewWriter(store, nil).Write(ctx, flatTable, frame.Empty(flatTable.Schema))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Files)

	keys, err := store.List(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, []string{"flat/_SUCCESS"}, keys)

	got, err := NewReader(store).Read(ctx, flatTable)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestReadRequiresCommitMarker(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := NewReader(store).Read(ctx, flatTable)
	if !errors.Is(err, ErrTableNotCommitted) {
		t.Fatalf("expected not committed, got %v", err)
	}

	f, err := frame.New(flatTable.Schema, []frame.Row{{"a", "1"}})
	require.NoError(t, err)
	_, err = NewWriter(store, nil).Write(ctx, flatTable, f)
	require.NoError(t, err)
	require.NoError(t, store.DeletePrefix(ctx, "flat/_SUCCESS"))

	_, err = NewReader(store).Read(ctx, flatTable)
	assert.ErrorIs(t, err, ErrTableNotCommitted)
}

func TestWriteRejectsSchemaMismatch(t *testing.T) {
	f, err := frame.New(frame.MustSchema(frame.String("k")), nil)
	require.NoError(t, err)
	_, err = NewWriter(newStore(t), nil).Write(context.Background(), flatTable, f)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}
