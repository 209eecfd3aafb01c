package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertThenDeleteScenario(t *testing.T) {
	ts := NewTimelines(nil)
	ts.Apply(writeRecord("U", 7, 100, 110, true))
	ts.Apply(writeRecord("U", 7, 200, 210, false))
	ts.Seal()

	tl, ok := ts.Lookup("U-7")
	require.True(t, ok)
	assert.EqualValues(t, 100, tl.MinStartTime)
	assert.EqualValues(t, 210, tl.MaxEndTime)
	assert.EqualValues(t, 0, tl.Net)
	assert.Equal(t, 2, tl.Len())

	lower, upper := tl.Bounds(160)
	assert.EqualValues(t, 1, lower)
	assert.EqualValues(t, 1, upper)

	assert.Equal(t, VerdictValid, tl.Classify(160, 1))
	assert.Equal(t, VerdictStale, tl.Classify(160, 0))
	assert.Equal(t, VerdictPruned, tl.Classify(60, 0))
}

func TestBoundsAtIntervalEdges(t *testing.T) {
	tl := newResourceTimeline(0, Interval{Start: 100, End: 110, Delta: 1})
	tl.addInterval(Interval{Start: 105, End: 120, Delta: -1})

	tests := []struct {
		at           int64
		lower, upper int64
	}{
		{99, 0, 0},
		{100, 0, 1},  // insert in flight
		{105, -1, 1}, // delete also in flight
		{110, 0, 1},  // insert done
		{119, 0, 1},
		{120, 0, 0}, // both done
		{1000, 0, 0},
	}
	for _, sealed := range []bool{false, true} {
		if sealed {
			tl.seal()
		}
		for _, tt := range tests {
			lower, upper := tl.Bounds(tt.at)
			assert.Equal(t, tt.lower, lower, "lower at %d sealed=%v", tt.at, sealed)
			assert.Equal(t, tt.upper, upper, "upper at %d sealed=%v", tt.at, sealed)
		}
	}
}

func TestInitialValueShiftsBounds(t *testing.T) {
	ts := NewTimelines(map[string]int64{"U-7": 5})
	ts.Apply(writeRecord("U", 7, 100, 110, true))
	ts.Apply(writeRecord("U", 8, 100, 110, true))
	ts.Seal()

	tl, _ := ts.Lookup("U-7")
	assert.EqualValues(t, 6, tl.Final())
	assert.Equal(t, VerdictValid, tl.Classify(200, 6))
	assert.Equal(t, VerdictStale, tl.Classify(200, 1))

	other, _ := ts.Lookup("U-8")
	assert.EqualValues(t, 1, other.Final())
}

func TestBoundsNeverCross(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for r := 0; r < 50; r++ {
		var (
			open   = newResourceTimeline(int64(rng.Intn(5)), randomInterval(rng))
			sealed = newResourceTimeline(open.Initial, open.intervals[0])
		)
		for i := 0; i < 1+rng.Intn(60); i++ {
			iv := randomInterval(rng)
			open.addInterval(iv)
			sealed.addInterval(iv)
		}
		sealed.seal()

		for i, iv := range open.intervals {
			assert.LessOrEqual(t, open.MinStartTime, iv.Start, "interval %d", i)
			assert.GreaterOrEqual(t, open.MaxEndTime, iv.End, "interval %d", i)
		}
		for at := int64(-5); at <= 1100; at += 7 {
			lower, upper := open.Bounds(at)
			require.LessOrEqual(t, lower, upper, "resource %d at %d", r, at)

			sl, su := sealed.Bounds(at)
			require.Equal(t, lower, sl, "resource %d at %d", r, at)
			require.Equal(t, upper, su, "resource %d at %d", r, at)
		}
	}
}

func randomInterval(rng *rand.Rand) Interval {
	start := int64(rng.Intn(1000))
	delta := int64(1)
	if rng.Intn(3) == 0 {
		delta = -1
	}
	return Interval{Start: start, End: start + int64(rng.Intn(80)), Delta: delta}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "pruned", VerdictPruned.String())
	assert.Equal(t, "valid", VerdictValid.String())
	assert.Equal(t, "stale", VerdictStale.String())
}
