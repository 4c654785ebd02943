package detection

import (
	"sort"

	"github.com/LdDl/spottrack-go/spot"
)

// MedianFilter3x3 applies a 3x3 median filter to every XY plane of img
// (a 3-sample median for 1D images). Borders use the mirror extension.
func MedianFilter3x3(img *spot.ArrayImage[float64], threads int) (*spot.ArrayImage[float64], error) {
	out, err := spot.NewArrayImage[float64](img.Dims(), img.Calibration())
	if err != nil {
		return nil, err
	}
	dims := img.Dims()
	n := len(dims)
	planeAxes := min(n, 2)
	dst := out.Data()
	err = parallelChunks(len(dst), threads, func(lo, hi int) error {
		window := make([]float64, 0, 9)
		pos := make([]int, n)
		nb := make([]int, n)
		for idx := lo; idx < hi; idx++ {
			rem := idx
			for d := 0; d < n; d++ {
				pos[d] = rem % dims[d]
				rem /= dims[d]
			}
			window = window[:0]
			copy(nb, pos)
			if planeAxes == 1 {
				for dx := -1; dx <= 1; dx++ {
					nb[0] = pos[0] + dx
					window = append(window, img.AtMirror(nb))
				}
			} else {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nb[0] = pos[0] + dx
						nb[1] = pos[1] + dy
						window = append(window, img.AtMirror(nb))
					}
				}
			}
			sort.Float64s(window)
			dst[idx] = window[len(window)/2]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
