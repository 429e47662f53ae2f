package runlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/songlake/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ledgerEpoch = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

func setupLedger(t *testing.T) (Ledger, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	clk := clock.NewFakeClock(ledgerEpoch)
	ledger, err := NewLedger(conn, clk)
	require.NoError(t, err)
	return ledger, clk
}

func latest(t *testing.T, ledger Ledger) *PipelineRun {
	t.Helper()
	runs, err := ledger.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestStartAndFinish(t *testing.T) {
	ctx := context.Background()
	ledger, _ := setupLedger(t)
	started := ledgerEpoch

	run := &PipelineRun{ID: "01JA0000000000000000000001", StartedAt: started, Input: "s3a://udacity-dend/", Output: "/tmp/lake"}
	require.NoError(t, ledger.Start(ctx, run))

	got := latest(t, ledger)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	finished := started.Add(90 * time.Second)
	run.Status = StatusSucceeded
	run.FinishedAt = &finished
	run.UnmatchedPlays = 6811
	run.MalformedRecords = 1
	run.Tables = datatypes.NewJSONType([]TableCount{
		{Table: "songs", Rows: 71, Partitions: 69, Files: 69},
		{Table: "songplays", Rows: 1, Partitions: 1, Files: 1},
	})
	require.NoError(t, ledger.Finish(ctx, run))

	got = latest(t, ledger)
	assert.Equal(t, StatusSucceeded, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, 6811, got.UnmatchedPlays)
	assert.Equal(t, 1, got.MalformedRecords)
	assert.Equal(t, []TableCount{
		{Table: "songs", Rows: 71, Partitions: 69, Files: 69},
		{Table: "songplays", Rows: 1, Partitions: 1, Files: 1},
	}, got.Tables.Data())
}

func TestStartRejectsDuplicateAndEmptyIDs(t *testing.T) {
	ctx := context.Background()
	ledger, _ := setupLedger(t)

	require.NoError(t, ledger.Start(ctx, &PipelineRun{ID: "01JA0000000000000000000002", StartedAt: ledgerEpoch}))
	err := ledger.Start(ctx, &PipelineRun{ID: "01JA0000000000000000000002", StartedAt: ledgerEpoch})
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected run exists, got %v", err)
	}
	assert.ErrorIs(t, ledger.Start(ctx, &PipelineRun{}), ErrInvalidRun)
}

func TestFinishUnknownRun(t *testing.T) {
	ledger, _ := setupLedger(t)
	err := ledger.Finish(context.Background(), &PipelineRun{ID: "missing", Status: StatusFailed})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinishDefaultsToLedgerClock(t *testing.T) {
	ctx := context.Background()
	ledger, clk := setupLedger(t)
	run := &PipelineRun{ID: "01JA0000000000000000000009", StartedAt: ledgerEpoch}
	require.NoError(t, ledger.Start(ctx, run))

	clk.Advance(5 * time.Minute)
	run.Status = StatusFailed
	require.NoError(t, ledger.Finish(ctx, run))

	got := latest(t, ledger)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, ledgerEpoch.Add(5*time.Minute).Equal(*got.FinishedAt), got.FinishedAt.String())
}

func TestRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger, _ := setupLedger(t)
	for _, id := range []string{"01JA0000000000000000000003", "01JA0000000000000000000005", "01JA0000000000000000000004"} {
		require.NoError(t, ledger.Start(ctx, &PipelineRun{ID: id, StartedAt: ledgerEpoch}))
	}

	runs, err := ledger.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "01JA0000000000000000000005", runs[0].ID)
	assert.Equal(t, "01JA0000000000000000000004", runs[1].ID)
}

func TestDiscard(t *testing.T) {
	var l Ledger = Discard{}
	require.NoError(t, l.Start(context.Background(), &PipelineRun{}))
	require.NoError(t, l.Finish(context.Background(), &PipelineRun{}))
	runs, err := l.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
