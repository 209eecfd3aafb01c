package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

func saveReport(t *testing.T, dir, name string, r engine.Report) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, engine.SaveReport(path, r, "json"))
	return path
}

func TestMergeSumsCounters(t *testing.T) {
	dir := t.TempDir()
	a := engine.Report{
		RunID: "run-a", MachineID: 0,
		NumWriteOps: 100, NumProcessed: 40, NumStaleOps: 4, NumPruned: 10,
		NumReadSessions: 20, NumStaleSessions: 2, ValidationTime: 900,
		ByOpType: map[string]engine.OpStats{"U": {Processed: 40, Stale: 4, Pruned: 10}},
	}
	b := engine.Report{
		RunID: "run-b", MachineID: 1,
		NumWriteOps: 50, NumProcessed: 60, NumStaleOps: 6, NumPruned: 40,
		NumReadSessions: 30, NumStaleSessions: 8, ValidationTime: 1200,
		ByOpType: map[string]engine.OpStats{
			"U":    {Processed: 10, Stale: 1},
			"Item": {Processed: 50, Stale: 5, Pruned: 40},
		},
	}
	a.Recompute()
	b.Recompute()
	paths := []string{saveReport(t, dir, "a.json", a), saveReport(t, dir, "b.json", b)}

	agg := NewAggregator(slogtest.Make(t, nil))
	got, err := agg.Merge(context.Background(), paths)
	require.NoError(t, err)

	assert.EqualValues(t, 150, got.NumWriteOps)
	assert.EqualValues(t, 100, got.NumProcessed)
	assert.EqualValues(t, 10, got.NumStaleOps)
	assert.EqualValues(t, 50, got.NumPruned)
	assert.EqualValues(t, 150, got.NumReadOps)
	assert.EqualValues(t, 50, got.NumReadSessions)
	assert.EqualValues(t, 10, got.NumStaleSessions)
	assert.EqualValues(t, 1200, got.ValidationTime)
	assert.InDelta(t, 10.0/150.0, got.StalenessRatio, 1e-12)
	assert.InDelta(t, 10.0/50.0, got.SessionStalenessRatio, 1e-12)
	assert.Equal(t, engine.OpStats{Processed: 50, Stale: 5, Pruned: 10}, got.ByOpType["U"])
	assert.Equal(t, engine.OpStats{Processed: 50, Stale: 5, Pruned: 40}, got.ByOpType["Item"])
	assert.Equal(t, []string{"run-a", "run-b"}, got.MergedRunIDs)
	assert.NotEmpty(t, got.RunID)
}

func TestMergeSkipsDuplicateRuns(t *testing.T) {
	dir := t.TempDir()
	r := engine.Report{RunID: "same", NumProcessed: 5, NumStaleOps: 1}
	paths := []string{saveReport(t, dir, "a.json", r), saveReport(t, dir, "b.json", r)}

	got, err := NewAggregator(slogtest.Make(t, nil)).Merge(context.Background(), paths)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.NumProcessed)
	assert.Equal(t, []string{"same"}, got.MergedRunIDs)
}

func TestMergeKeepsAnonymousRuns(t *testing.T) {
	dir := t.TempDir()
	anon := engine.Report{NumProcessed: 2}
	named := engine.Report{RunID: "named", NumProcessed: 3}
	paths := []string{
		saveReport(t, dir, "a.json", anon),
		saveReport(t, dir, "b.json", anon),
		saveReport(t, dir, "c.json", named),
	}

	got, err := NewAggregator(slogtest.Make(t, nil)).Merge(context.Background(), paths)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.NumProcessed)
	assert.Equal(t, []string{"named"}, got.MergedRunIDs)
}

func TestMergeErrors(t *testing.T) {
	dir := t.TempDir()
	agg := NewAggregator(slogtest.Make(t, nil))

	_, err := agg.Merge(context.Background(), nil)
	require.Error(t, err)

	_, err = agg.Merge(context.Background(), []string{filepath.Join(dir, "missing.json")})
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1,2,3]`), 0o644))
	_, err = agg.Merge(context.Background(), []string{bad})
	require.Error(t, err)
}

func TestParseToleratesMissingFields(t *testing.T) {
	r, err := NewAggregator(slogtest.Make(t, nil)).Parse([]byte(`{"NumProcessed": 3, "NumPruned": 1}`))
	require.NoError(t, err)
	assert.EqualValues(t, 4, r.NumReadOps)
	assert.Nil(t, r.ByOpType)
}
