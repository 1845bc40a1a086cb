package scraper

import "sync/atomic"

// RunState holds the per-run upload quota and counters.
// Admit must only be called from the pipeline's single processing point;
// the other methods are safe for concurrent use.
type RunState struct {
	limit        int64
	admitted     atomic.Int64
	limitReached atomic.Bool

	discovered atomic.Int64
	dropped    atomic.Int64
	faults     atomic.Int64
	uploaded   atomic.Int64
}

// NewRunState creates a RunState. A limit of zero means unlimited.
func NewRunState(limit int) *RunState {
	if limit < 0 {
		limit = 0
	}
	return &RunState{limit: int64(limit)}
}

// Limit returns the configured upload limit.
func (s *RunState) Limit() int { return int(s.limit) }

// Admit counts one more candidate for upload and reports whether it fits the quota.
// Once a candidate is refused the latch stays set for the rest of the run.
func (s *RunState) Admit() bool {
	n := s.admitted.Add(1)
	if s.limit == 0 || n <= s.limit {
		return true
	}
	s.limitReached.Store(true)
	return false
}

// LimitReached reports whether the quota latch is set.
func (s *RunState) LimitReached() bool { return s.limitReached.Load() }

// RecordDiscovered counts a document emitted by the traversal.
func (s *RunState) RecordDiscovered() { s.discovered.Add(1) }

// RecordDropped counts a policy drop.
func (s *RunState) RecordDropped() { s.dropped.Add(1) }

// RecordFault counts a fault.
func (s *RunState) RecordFault() { s.faults.Add(1) }

// RecordUploaded counts a successful archival.
func (s *RunState) RecordUploaded() { s.uploaded.Add(1) }

// Faults returns the number of faults recorded so far.
func (s *RunState) Faults() int64 { return s.faults.Load() }

// Stats returns a snapshot of the counters.
func (s *RunState) Stats() Stats {
	return Stats{
		Discovered:   s.discovered.Load(),
		Dropped:      s.dropped.Load(),
		Faults:       s.faults.Load(),
		Uploaded:     s.uploaded.Load(),
		Admitted:     s.admitted.Load(),
		LimitReached: s.limitReached.Load(),
	}
}
