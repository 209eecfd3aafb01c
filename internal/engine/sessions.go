package engine

import (
	"sync"
)

type seqSet map[int64]struct{}

// SessionTracker records which (thread, seq) sessions issued reads and which
// of them returned at least one stale value. The two sets are guarded by
// independent locks.
type SessionTracker struct {
	seenMu sync.Mutex
	seen   map[int64]seqSet

	staleMu sync.Mutex
	stale   map[int64]seqSet
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		seen:  make(map[int64]seqSet),
		stale: make(map[int64]seqSet),
	}
}

// Record notes one read of session (threadID, seqID). Repeated calls for the
// same session are idempotent.
func (s *SessionTracker) Record(threadID, seqID int64, stale bool) {
	s.seenMu.Lock()
	add(s.seen, threadID, seqID)
	s.seenMu.Unlock()

	if !stale {
		return
	}
	s.staleMu.Lock()
	add(s.stale, threadID, seqID)
	s.staleMu.Unlock()
}

func add(m map[int64]seqSet, threadID, seqID int64) {
	set, ok := m[threadID]
	if !ok {
		set = make(seqSet)
		m[threadID] = set
	}
	set[seqID] = struct{}{}
}

// IsStale reports whether any read of the session was stale.
func (s *SessionTracker) IsStale(threadID, seqID int64) bool {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	_, ok := s.stale[threadID][seqID]
	return ok
}

// Seen returns the number of distinct sessions across all threads.
func (s *SessionTracker) Seen() int64 {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return total(s.seen)
}

// Stale returns the number of distinct stale sessions across all threads.
func (s *SessionTracker) Stale() int64 {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	return total(s.stale)
}

func total(m map[int64]seqSet) int64 {
	var n int64
	for _, set := range m {
		n += int64(len(set))
	}
	return n
}
