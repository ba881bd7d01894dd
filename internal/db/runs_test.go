package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/service"
)

func newTestRunStore(t *testing.T) *RunStore {
	t.Helper()
	conn, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := NewRunStore(context.Background(), conn)
	require.NoError(t, err)
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestRunStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	runs := []service.Run{
		{ID: "a", Session: "s1", Kind: service.RunSetup, Layer: layer.Forest, StartDate: "2021-01-01", EndDate: "2023-01-01", Resolution: 10, Success: true, AreaKm2: 12.5, DurationMs: 800, StartedAt: base},
		{ID: "b", Session: "s1", Kind: service.RunAnalysis, Layer: layer.Wetland, StartDate: "2021-01-01", EndDate: "2023-01-01", Resolution: 10, Success: false, Detail: "GEE quota exceeded", DurationMs: 120, StartedAt: base.Add(time.Minute)},
		{ID: "c", Session: "s2", Kind: service.RunReanalysis, Layer: layer.Wetland, StartDate: "2022-01-01", EndDate: "2023-01-01", Resolution: 30, Success: true, DurationMs: 90, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, store.RecordRun(ctx, r))
	}

	all, total, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, service.RunReanalysis, all[0].Kind)
	assert.True(t, all[2].StartedAt.Equal(base))
	assert.InDelta(t, 12.5, all[2].AreaKm2, 1e-9)

	failed, total, err := store.ListRuns(ctx, RunFilter{Session: "s1", Layer: layer.Wetland})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Success)
	assert.Equal(t, "GEE quota exceeded", failed[0].Detail)

	page, total, err := store.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
}

func TestRecordRunRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newTestRunStore(t)
	run := service.Run{ID: "dup", Session: "s", Kind: service.RunSetup, Layer: layer.Forest, StartedAt: time.Now()}

	require.NoError(t, store.RecordRun(ctx, run))
	assert.Error(t, store.RecordRun(ctx, run))
}

func TestOpenCreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{DataDir: dir, DBName: "test"})
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, filepath.Join(dir, "duckdb", "test.duckdb"))
}
