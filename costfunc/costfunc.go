// Package costfunc holds the linking cost functions used to connect spots
// across frames: plain squared Euclidean distance, a grid geodesic over a
// label mask, and a geodesic served from a precomputed distance cache.
//
// Every cost function returns a non-negative value. A zero separation is
// reported as MinCost so that a valid link never has cost 0, and an
// impossible link is reported as NoPath.
package costfunc

import (
	"math"

	"github.com/LdDl/spottrack-go/spot"
)

// NoPath is the cost of a link that cannot be made.
var NoPath = math.Inf(1)

// MinCost is the smallest positive normal float64. It stands in for a zero
// cost.
const MinCost = 0x1p-1022

// CostFunction computes the cost of linking source to target.
type CostFunction interface {
	LinkingCost(source, target *spot.Spot) float64
}

// Func adapts an ordinary function to CostFunction.
type Func func(source, target *spot.Spot) float64

// LinkingCost calls f(source, target).
func (f Func) LinkingCost(source, target *spot.Spot) float64 {
	return f(source, target)
}

// SquareDistance costs a link by the squared Euclidean distance between the
// two spots.
type SquareDistance struct{}

// LinkingCost implements CostFunction.
func (SquareDistance) LinkingCost(source, target *spot.Spot) float64 {
	return nonZero(source.SquareDistanceTo(target))
}

// IsNoPath reports whether cost marks an impossible link.
func IsNoPath(cost float64) bool {
	return math.IsInf(cost, 1) || math.IsNaN(cost)
}

func nonZero(cost float64) float64 {
	if cost == 0 {
		return MinCost
	}
	return cost
}
