package costfunc

import (
	"math"

	"github.com/LdDl/spottrack-go/distcache"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
)

// reachableNeighbours lists the pixels examined around each end of a link.
var reachableNeighbours = [][2]int{{-1, 1}, {0, 1}, {1, 1}, {-1, 0}, {1, 0}, {-1, -1}, {0, -1}, {1, -1}}

// ReachableDistanceTime costs a link through the precomputed geodesic
// distances of a distance cache. For every time window shared by the two
// frames it tries each pair of pixels neighbouring the source and the
// target and keeps the cheapest
//
//	(|source - a| + geodesic(a, b) + |b - target|)^2
//
// The result is never below the squared Euclidean distance of the spots.
type ReachableDistanceTime struct {
	cache         *distcache.Cache
	labels        *Labels
	pixelSize     float64
	sameComponent bool
	farThreshold  float64
	logger        *logging.Logger
}

// ReachableOption configures a ReachableDistanceTime.
type ReachableOption func(*ReachableDistanceTime)

// WithSameComponent controls whether both neighbour pixels must carry the
// same label in the window. It is on by default.
func WithSameComponent(on bool) ReachableOption {
	return func(r *ReachableDistanceTime) {
		r.sameComponent = on
	}
}

// WithFarThreshold makes links whose squared Euclidean distance exceeds d2
// cost exactly that distance without a cache lookup. Zero disables it.
func WithFarThreshold(d2 float64) ReachableOption {
	return func(r *ReachableDistanceTime) {
		r.farThreshold = d2
	}
}

// WithLogger sets the logger used to report clamped cache entries.
func WithLogger(l *logging.Logger) ReachableOption {
	return func(r *ReachableDistanceTime) {
		r.logger = l
	}
}

// NewReachableDistanceTime builds the cost function. labels gives the grid
// size and the component of every pixel per window.
func NewReachableDistanceTime(cache *distcache.Cache, labels *Labels, pixelSize float64, opts ...ReachableOption) (*ReachableDistanceTime, error) {
	if cache == nil {
		return nil, errors.New("reachable distance: nil cache")
	}
	if labels == nil {
		return nil, errors.New("reachable distance: nil labels")
	}
	if !(pixelSize > 0) {
		return nil, errors.Errorf("reachable distance: pixel size must be positive, got %g", pixelSize)
	}
	r := &ReachableDistanceTime{
		cache:         cache,
		labels:        labels,
		pixelSize:     pixelSize,
		sameComponent: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNoop(r.logger).WithComponent("reachable-cost")
	return r, nil
}

// LinkingCost implements CostFunction. Both spots need a FRAME feature.
// Pixel coordinates come from the PX_X and PX_Y features when present.
func (r *ReachableDistanceTime) LinkingCost(source, target *spot.Spot) float64 {
	base := source.SquareDistanceTo(target)
	if r.farThreshold > 0 && base > r.farThreshold {
		return nonZero(base)
	}

	windows := intersect(r.cache.WindowsForFrame(source.Frame()), r.cache.WindowsForFrame(target.Frame()))
	if len(windows) == 0 {
		return NoPath
	}

	sx, sy := r.pixel(source)
	tx, ty := r.pixel(target)
	srcPixels := r.neighbours(sx, sy)
	dstPixels := r.neighbours(tx, ty)

	best := NoPath
	for _, win := range windows {
		for _, a := range srcPixels {
			sComp := r.labels.At(win, a[0], a[1])
			pa := r.labels.Index(a[0], a[1])
			for _, b := range dstPixels {
				tComp := r.labels.At(win, b[0], b[1])
				if r.sameComponent && sComp != tComp {
					continue
				}
				pb := r.labels.Index(b[0], b[1])
				var cost float64
				if pa == pb {
					cost = nonZero(base)
				} else {
					geo := r.cache.Dist(int(sComp), pa, pb, win)
					if math.IsInf(geo, 1) {
						continue
					}
					d := math.Sqrt(r.squareDistanceToPixel(source, a)) + geo + math.Sqrt(r.squareDistanceToPixel(target, b))
					cost = nonZero(d * d)
				}
				if cost < best {
					best = cost
				}
			}
		}
	}

	if best < base {
		r.logger.Debug("cache entry shorter than straight line",
			"source", source.ID(),
			"target", target.ID(),
			"cost", best,
			"euclidean", base,
		)
		best = nonZero(base)
	}
	return best
}

// pixel returns the grid pixel of s.
func (r *ReachableDistanceTime) pixel(s *spot.Spot) (int, int) {
	px, okx := s.Feature(spot.FeaturePixelX)
	py, oky := s.Feature(spot.FeaturePixelY)
	if okx && oky {
		return int(px), int(py)
	}
	return int(math.Floor(s.X() / r.pixelSize)), int(math.Floor(s.Y() / r.pixelSize))
}

func (r *ReachableDistanceTime) neighbours(x, y int) [][2]int {
	out := make([][2]int, 0, len(reachableNeighbours))
	for _, o := range reachableNeighbours {
		nx, ny := x+o[0], y+o[1]
		if r.labels.InBounds(nx, ny) {
			out = append(out, [2]int{nx, ny})
		}
	}
	return out
}

// squareDistanceToPixel measures from the spot to the centre of pixel p.
func (r *ReachableDistanceTime) squareDistanceToPixel(s *spot.Spot, p [2]int) float64 {
	dx := s.X() - (float64(p[0])*r.pixelSize + r.pixelSize/2)
	dy := s.Y() - (float64(p[1])*r.pixelSize + r.pixelSize/2)
	return dx*dx + dy*dy
}

func intersect(a, b []int) []int {
	out := make([]int, 0, len(a))
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
