package engine

import (
	"sync"

	"go.uber.org/atomic"
)

// OpStats is a per-opType breakdown of read outcomes.
type OpStats struct {
	Processed int64 `json:"processed" yaml:"processed"`
	Stale     int64 `json:"stale" yaml:"stale"`
	Pruned    int64 `json:"pruned" yaml:"pruned"`
}

type opCounters struct {
	processed atomic.Int64
	stale     atomic.Int64
	pruned    atomic.Int64
}

// Results holds the run-wide read counters. Increments never block; reads are
// eventually consistent while validators run and exact after they join.
type Results struct {
	processed atomic.Int64
	stale     atomic.Int64
	pruned    atomic.Int64

	opsMu sync.RWMutex
	ops   map[string]*opCounters
}

func NewResults() *Results {
	return &Results{ops: make(map[string]*opCounters)}
}

// increment adds one with a compare-and-swap retry loop.
func increment(v *atomic.Int64) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, old+1) {
			return
		}
	}
}

func (r *Results) IncProcessed() { increment(&r.processed) }
func (r *Results) IncStale()     { increment(&r.stale) }
func (r *Results) IncPruned()    { increment(&r.pruned) }

func (r *Results) Processed() int64 { return r.processed.Load() }
func (r *Results) Stale() int64     { return r.stale.Load() }
func (r *Results) Pruned() int64    { return r.pruned.Load() }

// Observe records the verdict of one read for opType in both the global and
// the per-opType counters.
func (r *Results) Observe(opType string, v Verdict) {
	oc := r.op(opType)
	switch v {
	case VerdictPruned:
		r.IncPruned()
		increment(&oc.pruned)
	case VerdictStale:
		r.IncProcessed()
		r.IncStale()
		increment(&oc.processed)
		increment(&oc.stale)
	default:
		r.IncProcessed()
		increment(&oc.processed)
	}
}

func (r *Results) op(opType string) *opCounters {
	r.opsMu.RLock()
	oc, ok := r.ops[opType]
	r.opsMu.RUnlock()
	if ok {
		return oc
	}

	r.opsMu.Lock()
	defer r.opsMu.Unlock()
	if oc, ok = r.ops[opType]; !ok {
		oc = &opCounters{}
		r.ops[opType] = oc
	}
	return oc
}

// ByOpType snapshots the per-opType counters.
func (r *Results) ByOpType() map[string]OpStats {
	r.opsMu.RLock()
	defer r.opsMu.RUnlock()
	out := make(map[string]OpStats, len(r.ops))
	for name, oc := range r.ops {
		out[name] = OpStats{
			Processed: oc.processed.Load(),
			Stale:     oc.stale.Load(),
			Pruned:    oc.pruned.Load(),
		}
	}
	return out
}
