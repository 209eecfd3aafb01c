package engine

import (
	"sort"
)

// Verdict is the outcome of judging one read.
type Verdict uint8

const (
	VerdictPruned Verdict = iota
	VerdictValid
	VerdictStale
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictStale:
		return "stale"
	default:
		return "pruned"
	}
}

// Interval is one write's [Start, End] window and its signed effect.
type Interval struct {
	Start int64
	End   int64
	Delta int64
}

// ResourceTimeline is the write history of a single resource.
//
// MinStartTime <= every interval's Start and MaxEndTime >= every interval's End.
// Net is the sum of all deltas in arrival order.
type ResourceTimeline struct {
	MinStartTime int64
	MaxEndTime   int64
	Net          int64
	Initial      int64

	intervals []Interval

	// Sorted index built by seal(). Prefix sums have len(intervals)+1 entries.
	sealed   bool
	starts   []int64
	startPos []int64
	startNeg []int64
	ends     []int64
	endPos   []int64
	endNeg   []int64
}

func newResourceTimeline(initial int64, iv Interval) *ResourceTimeline {
	tl := &ResourceTimeline{
		MinStartTime: iv.Start,
		MaxEndTime:   iv.End,
		Initial:      initial,
	}
	tl.addInterval(iv)
	return tl
}

// addInterval records one write. Callers must hold the Timelines lock.
func (tl *ResourceTimeline) addInterval(iv Interval) {
	if iv.Start < tl.MinStartTime {
		tl.MinStartTime = iv.Start
	}
	if iv.End > tl.MaxEndTime {
		tl.MaxEndTime = iv.End
	}
	tl.Net += iv.Delta
	tl.intervals = append(tl.intervals, iv)
	tl.sealed = false
}

// Len returns the number of recorded writes.
func (tl *ResourceTimeline) Len() int {
	return len(tl.intervals)
}

// Intervals returns a copy of the recorded writes in arrival order.
func (tl *ResourceTimeline) Intervals() []Interval {
	out := make([]Interval, len(tl.intervals))
	copy(out, tl.intervals)
	return out
}

// Final is the value the resource holds once every write has completed.
func (tl *ResourceTimeline) Final() int64 {
	return tl.Initial + tl.Net
}

// seal builds the sorted start/end index so Bounds runs in O(log n).
func (tl *ResourceTimeline) seal() {
	if tl.sealed {
		return
	}
	n := len(tl.intervals)
	byStart := make([]Interval, n)
	copy(byStart, tl.intervals)
	sort.Slice(byStart, func(i, j int) bool { return byStart[i].Start < byStart[j].Start })
	byEnd := make([]Interval, n)
	copy(byEnd, tl.intervals)
	sort.Slice(byEnd, func(i, j int) bool { return byEnd[i].End < byEnd[j].End })

	tl.starts, tl.startPos, tl.startNeg = prefix(byStart, func(iv Interval) int64 { return iv.Start })
	tl.ends, tl.endPos, tl.endNeg = prefix(byEnd, func(iv Interval) int64 { return iv.End })
	tl.sealed = true
}

func prefix(sorted []Interval, at func(Interval) int64) (times, pos, neg []int64) {
	times = make([]int64, len(sorted))
	pos = make([]int64, len(sorted)+1)
	neg = make([]int64, len(sorted)+1)
	for i, iv := range sorted {
		times[i] = at(iv)
		pos[i+1], neg[i+1] = pos[i], neg[i]
		if iv.Delta > 0 {
			pos[i+1] += iv.Delta
		} else {
			neg[i+1] += iv.Delta
		}
	}
	return times, pos, neg
}

// upTo returns how many sorted times are <= t.
func upTo(times []int64, t int64) int {
	return sort.Search(len(times), func(i int) bool { return times[i] > t })
}

// Bounds returns the lowest and highest value any replica could legally show
// at time t. Completed writes (End <= t) count on both sides; a write that may
// be in flight (Start <= t < End) counts only on the side it moves the value
// towards, so lower <= upper always holds.
func (tl *ResourceTimeline) Bounds(t int64) (lower, upper int64) {
	var (
		posDone, negDone       int64
		posStarted, negStarted int64
	)
	if tl.sealed {
		s, e := upTo(tl.starts, t), upTo(tl.ends, t)
		posStarted, negStarted = tl.startPos[s], tl.startNeg[s]
		posDone, negDone = tl.endPos[e], tl.endNeg[e]
	} else {
		for _, iv := range tl.intervals {
			if iv.Start > t {
				continue
			}
			done := iv.End <= t
			if iv.Delta > 0 {
				posStarted += iv.Delta
				if done {
					posDone += iv.Delta
				}
			} else {
				negStarted += iv.Delta
				if done {
					negDone += iv.Delta
				}
			}
		}
	}
	lower = tl.Initial + posDone + negStarted
	upper = tl.Initial + posStarted + negDone
	return lower, upper
}

// Classify judges a read that ended at readEnd and observed value.
func (tl *ResourceTimeline) Classify(readEnd, value int64) Verdict {
	if readEnd < tl.MinStartTime {
		return VerdictPruned
	}
	lower, upper := tl.Bounds(readEnd)
	if value < lower || value > upper {
		return VerdictStale
	}
	return VerdictValid
}
