package engine

import (
	"context"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTicksOnInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	results := NewResults()
	p := StartProgress(ctx, slogtest.Make(t, nil), clock, time.Second, results)

	clock.Advance(500 * time.Millisecond).MustWait(ctx)
	assert.Zero(t, p.Ticks())
	clock.Advance(500 * time.Millisecond).MustWait(ctx)
	assert.EqualValues(t, 1, p.Ticks())

	for i := 0; i < 3; i++ {
		results.Observe("U", VerdictValid)
		clock.Advance(time.Second).MustWait(ctx)
	}
	assert.EqualValues(t, 4, p.Ticks())

	require.NoError(t, p.Stop())
	assert.EqualValues(t, 4, p.Ticks())
}

func TestProgressStopWithoutTicks(t *testing.T) {
	p := StartProgress(context.Background(), slogtest.Make(t, nil), quartz.NewMock(t), time.Hour, NewResults())
	require.NoError(t, p.Stop())
	assert.Zero(t, p.Ticks())
}
