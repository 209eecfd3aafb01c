package engine

import (
	"context"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanolog/stalecheck/internal/logfile"
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

func sealedTimelines(recs ...model.LogRecord) *Timelines {
	ts := NewTimelines(nil)
	for _, rec := range recs {
		ts.Apply(rec)
	}
	ts.Seal()
	return ts
}

func TestValidatorClassifiesReads(t *testing.T) {
	ts := sealedTimelines(
		writeRecord("U", 1, 10, 20, true),
		writeRecord("U", 2, 10, 20, true),
		writeRecord("U", 2, 30, 40, false),
		writeRecord("Item", 2, 10, 20, true),
	)

	dir := t.TempDir()
	writeLog(t, dir, model.KindRead, 0, 0, []string{
		readLine("U", 1, 0, 1, 25, 30, 1), // valid
		readLine("U", 1, 0, 1, 25, 30, 0), // stale, marks session 1
		readLine("U", 2, 0, 2, 31, 35, 0), // delete in flight: valid
		readLine("U", 2, 0, 2, 41, 45, 1), // stale, marks session 2
		readLine("U", 3, 0, 9, 1, 100, 5), // never written: pruned
		readLine("U", 4, 0, 1, 1, 5, 0),   // ended before first write: pruned
	})
	writeLog(t, dir, model.KindRead, 0, 1, []string{
		readLine("Item", 1, 1, 2, 15, 25, 1), // valid
	})

	ctx := context.Background()
	logger := slogtest.Make(t, nil)
	sessions, results := NewSessionTracker(), NewResults()
	v := NewValidator(logger, ts, sessions, results, logfile.NewReader(), PoolConfig{Threads: 4, Block: 2})
	n, err := v.Validate(ctx, logfile.Discover(ctx, logger, dir, model.KindRead, 0, 2))
	require.NoError(t, err)

	assert.EqualValues(t, 7, n)
	assert.EqualValues(t, 4, v.Batches())
	assert.EqualValues(t, 5, results.Processed())
	assert.EqualValues(t, 2, results.Stale())
	assert.EqualValues(t, 2, results.Pruned())

	assert.EqualValues(t, 5, sessions.Seen())
	assert.EqualValues(t, 2, sessions.Stale())
	assert.True(t, sessions.IsStale(0, 1))
	assert.True(t, sessions.IsStale(0, 2))
	assert.False(t, sessions.IsStale(0, 3))
	assert.False(t, sessions.IsStale(1, 1))

	byOp := results.ByOpType()
	assert.Equal(t, OpStats{Processed: 4, Stale: 2, Pruned: 2}, byOp["U"])
	assert.Equal(t, OpStats{Processed: 1}, byOp["Item"])
}

func TestValidatorCheck(t *testing.T) {
	ts := sealedTimelines(writeRecord("U", 1, 100, 110, true))
	v := NewValidator(slogtest.Make(t, nil), ts, NewSessionTracker(), NewResults(), logfile.NewReader(), PoolConfig{})

	tests := []struct {
		name string
		rec  model.LogRecord
		want Verdict
	}{
		{name: "Unknown", rec: model.LogRecord{OpType: "U", RID: 2, EndTime: 200}, want: VerdictPruned},
		{name: "BeforeFirstWrite", rec: model.LogRecord{OpType: "U", RID: 1, EndTime: 99}, want: VerdictPruned},
		{name: "InFlightOld", rec: model.LogRecord{OpType: "U", RID: 1, EndTime: 105, Value: 0}, want: VerdictValid},
		{name: "InFlightNew", rec: model.LogRecord{OpType: "U", RID: 1, EndTime: 105, Value: 1}, want: VerdictValid},
		{name: "Done", rec: model.LogRecord{OpType: "U", RID: 1, EndTime: 110, Value: 1}, want: VerdictValid},
		{name: "DoneButOld", rec: model.LogRecord{OpType: "U", RID: 1, EndTime: 110, Value: 0}, want: VerdictStale},
		{name: "OtherOpType", rec: model.LogRecord{OpType: "Item", RID: 1, EndTime: 110, Value: 0}, want: VerdictPruned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.check(tt.rec))
		})
	}
}

func TestValidatorParseErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, model.KindRead, 0, 0, []string{
		readLine("U", 1, 0, 1, 1, 2, 0),
		"U,1,0,1,1,2",
	})

	ctx := context.Background()
	logger := slogtest.Make(t, nil)
	v := NewValidator(logger, NewTimelines(nil), NewSessionTracker(), NewResults(), logfile.NewReader(), PoolConfig{Threads: 1, Block: 1})
	_, err := v.Validate(ctx, logfile.Discover(ctx, logger, dir, model.KindRead, 0, 1))
	require.Error(t, err)
	var perr *logfile.ParseError
	assert.ErrorAs(t, err, &perr)
}
