package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

func buildTimelines() *engine.Timelines {
	ts := engine.NewTimelines(nil)
	ts.Add("U-7", engine.Interval{Start: 100, End: 110, Delta: 1})
	ts.Add("U-7", engine.Interval{Start: 200, End: 210, Delta: -1})
	ts.Add("U-8", engine.Interval{Start: 50, End: 400, Delta: 1})
	ts.Add("Item-1", engine.Interval{Start: 5, End: 9, Delta: 1})
	ts.Seal()
	return ts
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timelines.stl")
	src := buildTimelines()

	cw, err := NewColumnWriter()
	require.NoError(t, err)
	defer cw.Close()
	require.NoError(t, cw.WriteSnapshot(path, src))

	cr, err := NewColumnReader()
	require.NoError(t, err)
	defer cr.Close()

	ft, err := cr.ReadFooter(path)
	require.NoError(t, err)
	assert.Equal(t, Footer{Intervals: 4, Resources: 3, MinStart: 5, MaxEnd: 400}, ft)

	dst := engine.NewTimelines(nil)
	n, err := cr.ReadSnapshot(path, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	dst.Seal()

	require.Equal(t, src.Keys(), dst.Keys())
	for _, key := range src.Keys() {
		want, _ := src.Lookup(key)
		got, ok := dst.Lookup(key)
		require.True(t, ok, key)
		assert.Equal(t, want.Intervals(), got.Intervals(), key)
		assert.Equal(t, want.MinStartTime, got.MinStartTime, key)
		assert.Equal(t, want.MaxEndTime, got.MaxEndTime, key)
		assert.Equal(t, want.Final(), got.Final(), key)
	}

	tl, _ := dst.Lookup("U-7")
	assert.Equal(t, engine.VerdictValid, tl.Classify(160, 1))
	assert.Equal(t, engine.VerdictStale, tl.Classify(160, 0))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.stl")
	cw, err := NewColumnWriter()
	require.NoError(t, err)
	defer cw.Close()
	require.NoError(t, cw.WriteSnapshot(path, engine.NewTimelines(nil)))

	cr, err := NewColumnReader()
	require.NoError(t, err)
	defer cr.Close()

	dst := engine.NewTimelines(nil)
	n, err := cr.ReadSnapshot(path, dst)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, dst.Len())
}

func TestSnapshotRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cr, err := NewColumnReader()
	require.NoError(t, err)
	defer cr.Close()

	bad := filepath.Join(dir, "bad.stl")
	require.NoError(t, os.WriteFile(bad, []byte("NOTASNAPSHOT-and-some-padding-to-pass-size"), 0o644))
	_, err = cr.ReadFooter(bad)
	assert.True(t, xerrors.Is(err, ErrInvalidHeader))

	short := filepath.Join(dir, "short.stl")
	require.NoError(t, os.WriteFile(short, MagicHeader, 0o644))
	_, err = cr.ReadFooter(short)
	assert.True(t, xerrors.Is(err, ErrCorrupt))

	_, err = cr.ReadSnapshot(filepath.Join(dir, "missing.stl"), engine.NewTimelines(nil))
	assert.Error(t, err)
}
