package spline

import (
	"math"
	"slices"
	"sync"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/logging"
)

// CacheTolerance is the parameter-step distance under which two cache
// entries are the same resolution.
const CacheTolerance = 1e-8

type cacheEntry struct {
	segments []geom.Segment2D
	box      geom.Box
	du       float64
}

// SegmentCache stores projected segments per (projection, step). Each
// projection slot is kept sorted by step. Safe for concurrent use.
type SegmentCache struct {
	mu    sync.RWMutex
	slots [3][]cacheEntry
}

func slotOf(p geom.Projection) (int, bool) {
	switch p {
	case geom.ProjectX:
		return 0, true
	case geom.ProjectY:
		return 1, true
	case geom.ProjectZ:
		return 2, true
	}
	return 0, false
}

// Record stores a copy of segments. It returns false when the projection has
// no slot or an entry within CacheTolerance of du already exists.
func (c *SegmentCache) Record(segments []geom.Segment2D, box geom.Box, p geom.Projection, du float64) bool {
	slot, ok := slotOf(p)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.slots[slot]
	at := len(entries)
	for i, e := range entries {
		if e.du >= du-CacheTolerance {
			if math.Abs(e.du-du) < CacheTolerance {
				logging.Issue("segment resolution already cached", "projection", p, "du", du)
				return false
			}
			at = i
			break
		}
	}
	entry := cacheEntry{segments: slices.Clone(segments), box: box, du: du}
	c.slots[slot] = slices.Insert(entries, at, entry)
	return true
}

// Retrieve returns a copy of the segments cached for (p, du).
func (c *SegmentCache) Retrieve(p geom.Projection, du float64) ([]geom.Segment2D, geom.Box, bool) {
	slot, ok := slotOf(p)
	if !ok {
		return nil, geom.EmptyBox(), false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.slots[slot] {
		if math.Abs(du-e.du) < CacheTolerance {
			return slices.Clone(e.segments), e.box, true
		}
		if e.du > du+CacheTolerance {
			break
		}
	}
	return nil, geom.EmptyBox(), false
}

// Clear drops every entry.
func (c *SegmentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		c.slots[i] = nil
	}
}

// Len returns the number of cached entries across all projections.
func (c *SegmentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, s := range c.slots {
		n += len(s)
	}
	return n
}
