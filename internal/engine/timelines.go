package engine

import (
	"sort"
	"sync"

	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// Timelines maps resource keys to their write histories.
//
// Every mutation, both creating a missing timeline and updating an existing
// one, runs inside one run-wide critical section. The create-or-update is a
// multi-field read-modify-write (min, max, net, interval list) that a per-key
// or lock-free map could not make atomic.
//
// Lookup takes no lock. It is only valid once every writer has finished,
// which the two-phase orchestration guarantees.
type Timelines struct {
	mu        sync.Mutex
	resources map[string]*ResourceTimeline
	initial   map[string]int64
	intervals int64
}

// NewTimelines creates an empty map. initial optionally seeds the baseline
// value of individual resources; absent keys start at 0.
func NewTimelines(initial map[string]int64) *Timelines {
	if initial == nil {
		initial = map[string]int64{}
	}
	return &Timelines{
		resources: make(map[string]*ResourceTimeline),
		initial:   initial,
	}
}

// Apply folds one write record into its resource's timeline.
func (ts *Timelines) Apply(rec model.LogRecord) {
	ts.Add(rec.ResourceKey(), Interval{Start: rec.StartTime, End: rec.EndTime, Delta: rec.Delta()})
}

// Add is the create-or-update primitive behind Apply and snapshot loading.
func (ts *Timelines) Add(key string, iv Interval) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if tl, ok := ts.resources[key]; ok {
		tl.addInterval(iv)
	} else {
		ts.resources[key] = newResourceTimeline(ts.initial[key], iv)
	}
	ts.intervals++
}

// Seal builds the query index of every timeline. Call it after the last Add.
func (ts *Timelines) Seal() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, tl := range ts.resources {
		tl.seal()
	}
}

// Lookup returns the timeline of key. See the type comment for its contract.
func (ts *Timelines) Lookup(key string) (*ResourceTimeline, bool) {
	tl, ok := ts.resources[key]
	return tl, ok
}

// Len returns the number of resources with at least one write.
func (ts *Timelines) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.resources)
}

// Intervals returns the total number of writes recorded.
func (ts *Timelines) Intervals() int64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.intervals
}

// Keys returns resource keys in sorted order.
func (ts *Timelines) Keys() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	keys := make([]string, 0, len(ts.resources))
	for k := range ts.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Columns flattens every interval into columnar form, resources in key order
// and intervals in arrival order.
func (ts *Timelines) Columns() *TimelineColumns {
	keys := ts.Keys()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	cols := NewTimelineColumns(int(ts.intervals))
	for _, k := range keys {
		for _, iv := range ts.resources[k].intervals {
			cols.Append(k, iv)
		}
	}
	return cols
}
