package distcache

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// NoPath is returned by Dist when the table has no entry for a lookup.
var NoPath = math.Inf(1)

// Key addresses one distance: a component label, the smaller and the larger
// linear pixel index, and a time window.
type Key struct {
	Component uint32
	Min       uint32
	Max       uint32
	Window    uint32
}

// entry is an interned (distance, window range) record.
type entry struct {
	dist     float32
	winStart uint32
	winEnd   uint32
}

// Cache is a read-only lookup table built from a File. It is safe for
// concurrent use.
type Cache struct {
	version        Version
	windowDuration int
	windowStarts   []int
	index          map[Key]uint32
	entries        []entry
}

// New builds the lookup table of f. Window ranges of version 1 files are
// expanded to one key per window; the first span covering a window wins.
// Identical (distance, window range) records share one entry.
func New(f *File) (*Cache, error) {
	if f.Version != VersionTimeWindowed && f.Version != VersionStatic {
		return nil, errors.Wrapf(ErrUnknownVersion, "version %d", f.Version)
	}
	c := &Cache{
		version:      f.Version,
		index:        make(map[Key]uint32, f.NumEntries()),
		windowStarts: []int{0},
	}
	if f.Version == VersionTimeWindowed {
		c.windowDuration = int(f.WindowDuration)
		c.windowStarts = WindowStarts(f.WindowDuration, f.WindowOverlap, f.WindowCount)
	}
	numWindows := uint32(len(c.windowStarts))

	interned := make(map[entry]uint32)
	for _, comp := range f.Components {
		for _, src := range comp.Sources {
			for _, dst := range src.Targets {
				lo, hi := src.Pixel, dst.Pixel
				if lo > hi {
					lo, hi = hi, lo
				}
				for _, sp := range dst.Spans {
					if int(sp.ValueIndex) >= len(f.Values) {
						return nil, errors.Wrapf(ErrValueIndex, "index %d, %d values", sp.ValueIndex, len(f.Values))
					}
					e := entry{dist: f.Values[sp.ValueIndex], winStart: sp.WindowStart, winEnd: sp.WindowEnd}
					if f.Version == VersionStatic {
						e.winStart, e.winEnd = 0, 0
					}
					id, ok := interned[e]
					if !ok {
						id = uint32(len(c.entries))
						interned[e] = id
						c.entries = append(c.entries, e)
					}
					for w := e.winStart; w <= e.winEnd && w < numWindows; w++ {
						key := Key{Component: comp.Label, Min: lo, Max: hi, Window: w}
						if _, exists := c.index[key]; !exists {
							c.index[key] = id
						}
					}
				}
			}
		}
	}
	return c, nil
}

// Version returns the layout the cache was built from.
func (c *Cache) Version() Version { return c.version }

// Is2D reports whether the cache has a single static window.
func (c *Cache) Is2D() bool { return c.version == VersionStatic }

// NumKeys returns the number of addressable (component, pixels, window) keys.
func (c *Cache) NumKeys() int { return len(c.index) }

// NumEntries returns the number of distinct (distance, window range) records.
func (c *Cache) NumEntries() int { return len(c.entries) }

// WindowStarts returns the first frame of every window.
func (c *Cache) WindowStarts() []int { return slices.Clone(c.windowStarts) }

// WindowsForFrame returns the indices of the windows containing frame.
// A static cache always answers window 0.
func (c *Cache) WindowsForFrame(frame int) []int {
	if c.version == VersionStatic {
		return []int{0}
	}
	out := make([]int, 0, 2)
	for i, start := range c.windowStarts {
		if frame >= start && frame < start+c.windowDuration {
			out = append(out, i)
		}
	}
	return out
}

// Dist returns the geodesic distance between two linear pixel indices of a
// component within a window, or NoPath when the table has no such entry.
// The pixel order does not matter.
func (c *Cache) Dist(component, px1, px2, window int) float64 {
	if component < 0 || px1 < 0 || px2 < 0 || window < 0 {
		return NoPath
	}
	if px1 > px2 {
		px1, px2 = px2, px1
	}
	id, ok := c.index[Key{Component: uint32(component), Min: uint32(px1), Max: uint32(px2), Window: uint32(window)}]
	if !ok {
		return NoPath
	}
	return float64(c.entries[id].dist)
}

// WindowStarts computes the first frame of each of the count windows of
// the given duration and fractional overlap. Consecutive windows start
// floor(duration*(1-overlap))+1 frames apart, or duration+1 frames apart
// without overlap. There is always at least one window.
func WindowStarts(duration uint32, overlap float32, count uint32) []int {
	dw := int(math.Floor(float64(float32(duration) * (1 - overlap))))
	if overlap == 0 {
		dw = int(duration)
	}
	starts := make([]int, 1, max(count, 1))
	for i := 1; i < int(count); i++ {
		starts = append(starts, (dw+1)*i)
	}
	return starts
}
