package costfunc

import (
	"fmt"
	"math"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
)

// Connectivity is the pixel neighbourhood used by the grid search.
type Connectivity int

const (
	// Connectivity4 links pixels sharing an edge.
	Connectivity4 Connectivity = 4
	// Connectivity8 links pixels sharing an edge or a corner.
	Connectivity8 Connectivity = 8
)

func (c Connectivity) String() string {
	return fmt.Sprintf("%d-connectivity", int(c))
}

var (
	neighbours8 = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	neighbours4 = [][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
)

// GraphDistance costs a link by the squared length of the shortest pixel
// path between the two spots through the labelled pixels of a mask. Every
// step has length pixelSize.
type GraphDistance struct {
	labels       *Labels
	walkable     *roaring.Bitmap
	pixelSize    float64
	connectivity Connectivity
}

// GraphOption configures a GraphDistance.
type GraphOption func(*GraphDistance)

// WithConnectivity selects the 4- or 8-neighbourhood. The default is 8.
func WithConnectivity(c Connectivity) GraphOption {
	return func(g *GraphDistance) {
		g.connectivity = c
	}
}

// WithPixelSize sets the physical size of a pixel. The default is 1.
func WithPixelSize(size float64) GraphOption {
	return func(g *GraphDistance) {
		g.pixelSize = size
	}
}

// NewGraphDistance builds the cost function over the first layer of labels.
func NewGraphDistance(labels *Labels, opts ...GraphOption) (*GraphDistance, error) {
	if labels == nil {
		return nil, errors.New("graph distance: nil labels")
	}
	g := &GraphDistance{
		labels:       labels,
		pixelSize:    1,
		connectivity: Connectivity8,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.connectivity != Connectivity4 && g.connectivity != Connectivity8 {
		return nil, errors.Errorf("graph distance: unsupported connectivity %d", g.connectivity)
	}
	if !(g.pixelSize > 0) {
		return nil, errors.Errorf("graph distance: pixel size must be positive, got %g", g.pixelSize)
	}
	g.walkable = labels.Foreground(0)
	return g, nil
}

// Steps returns the number of steps of the shortest path from (x0, y0) to
// (x1, y1), and false when no path exists or an end is not walkable.
func (g *GraphDistance) Steps(x0, y0, x1, y1 int) (int, bool) {
	l := g.labels
	if !l.InBounds(x0, y0) || !l.InBounds(x1, y1) {
		return 0, false
	}
	src, dst := uint32(l.Index(x0, y0)), uint32(l.Index(x1, y1))
	if !g.walkable.Contains(src) || !g.walkable.Contains(dst) {
		return 0, false
	}
	if src == dst {
		return 0, true
	}
	offsets := neighbours8
	if g.connectivity == Connectivity4 {
		offsets = neighbours4
	}

	settled := roaring.New()
	tentative := map[uint32]int{src: 0}
	var seq uint64
	h := &pixelHeap{}
	h.Push(pixelItem{pixel: src, steps: 0, seq: seq})
	for h.Len() > 0 {
		cur := h.Pop()
		if settled.Contains(cur.pixel) {
			continue
		}
		settled.Add(cur.pixel)
		if cur.pixel == dst {
			return cur.steps, true
		}
		cx, cy := int(cur.pixel)%l.width, int(cur.pixel)/l.width
		for _, o := range offsets {
			nx, ny := cx+o[0], cy+o[1]
			if !l.InBounds(nx, ny) {
				continue
			}
			n := uint32(l.Index(nx, ny))
			if !g.walkable.Contains(n) || settled.Contains(n) {
				continue
			}
			alt := cur.steps + 1
			if best, ok := tentative[n]; ok && best <= alt {
				continue
			}
			tentative[n] = alt
			seq++
			h.Push(pixelItem{pixel: n, steps: alt, seq: seq})
		}
	}
	return 0, false
}

// LinkingCost implements CostFunction. A spot sits on the pixel
// floor(position / pixelSize).
func (g *GraphDistance) LinkingCost(source, target *spot.Spot) float64 {
	x0, y0 := g.pixel(source)
	x1, y1 := g.pixel(target)
	steps, ok := g.Steps(x0, y0, x1, y1)
	if !ok {
		return NoPath
	}
	d := float64(steps) * g.pixelSize
	return nonZero(d * d)
}

func (g *GraphDistance) pixel(s *spot.Spot) (int, int) {
	return int(math.Floor(s.X() / g.pixelSize)), int(math.Floor(s.Y() / g.pixelSize))
}
