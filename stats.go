package cartcache

import "sync/atomic"

// stats holds the per-instance counters. Increments are atomic; a snapshot
// reads the counters independently, so under heavy concurrency the derived
// numbers are approximate. That is acceptable for hit-rate telemetry.
type stats struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errors  atomic.Int64
}

func (s *stats) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.deletes.Store(0)
	s.errors.Store(0)
}

// StatsSnapshot is a point-in-time copy of a store's counters.
type StatsSnapshot struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64
	Total   int64   // hits + misses
	HitRate float64 // percentage; 0 when no lookups yet
}

func (s *stats) snapshot() StatsSnapshot {
	out := StatsSnapshot{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
		Errors:  s.errors.Load(),
	}
	out.Total = out.Hits + out.Misses
	if out.Total > 0 {
		out.HitRate = float64(out.Hits) / float64(out.Total) * 100
	}
	return out
}
