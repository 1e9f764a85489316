package rbtree

import "sync/atomic"

type counters struct {
	inserts   atomic.Int64
	removes   atomic.Int64
	clears    atomic.Int64
	lookups   atomic.Int64
	cacheHits atomic.Int64
	rotations atomic.Int64
}

// Stats is a point-in-time snapshot of a tree's activity counters.
type Stats struct {
	Len       int   `json:"len"        yaml:"len"`
	Inserts   int64 `json:"inserts"    yaml:"inserts"`
	Removes   int64 `json:"removes"    yaml:"removes"`
	Clears    int64 `json:"clears"     yaml:"clears"`
	Lookups   int64 `json:"lookups"    yaml:"lookups"`
	CacheHits int64 `json:"cache_hits" yaml:"cache_hits"`
	Rotations int64 `json:"rotations"  yaml:"rotations"`
}

// CacheHitRate returns the fraction of lookups answered by the last-found
// cache, or 0 when no lookups have been made.
func (s Stats) CacheHitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}

	return float64(s.CacheHits) / float64(s.Lookups)
}

// Stats returns the current counters. It may be called from another
// goroutine while the tree is in use; the fields are read individually, so
// the snapshot is not atomic as a whole.
func (tree *Tree[K, V]) Stats() Stats {
	return Stats{
		Len:       tree.Len(),
		Inserts:   tree.stats.inserts.Load(),
		Removes:   tree.stats.removes.Load(),
		Clears:    tree.stats.clears.Load(),
		Lookups:   tree.stats.lookups.Load(),
		CacheHits: tree.stats.cacheHits.Load(),
		Rotations: tree.stats.rotations.Load(),
	}
}
