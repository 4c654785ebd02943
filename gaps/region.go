package gaps

import (
	"math"

	"github.com/LdDl/spottrack-go/spot"
)

// RegionAround returns the pixel interval centred on s with half-size
// searchRadius times the spot radius, clamped to an image of the given
// dims. The X calibration sets the half-size of the X and Y axes, the Z
// calibration that of the Z axis.
func RegionAround(s *spot.Spot, searchRadius float64, dims []int, cal spot.Calibration) spot.Interval {
	n := len(dims)
	pos := s.Position()
	reach := searchRadius * s.Radius()
	lo := make([]int, n)
	hi := make([]int, n)
	for d := 0; d < n; d++ {
		c := int(math.Round(pos[d] / cal.At(d)))
		step := cal.At(0)
		if d == 2 {
			step = cal.At(2)
		}
		r := int(math.Abs(math.Ceil(reach / step)))
		lo[d] = maxInt(0, c-r)
		hi[d] = minInt(dims[d]-1, c+r)
	}
	return spot.NewInterval(lo, hi)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
