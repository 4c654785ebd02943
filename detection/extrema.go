package detection

import (
	"math"

	"github.com/LdDl/spottrack-go/spot"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxMoves is the number of times sub-pixel refinement may move to a
// neighbouring pixel before giving up.
const DefaultMaxMoves = 10

// Peak is a local maximum of a filtered image.
type Peak struct {
	// Pos is the integer pixel position of the maximum.
	Pos []int
	// Refined is the sub-pixel position, equal to Pos when not refined.
	Refined []float64
	// Value is the filtered image value at Pos.
	Value float64
	// Valid is false when sub-pixel refinement could not converge.
	Valid bool
}

// FindLocalMaxima returns the pixels of img whose value is above threshold
// and strictly greater than all their 3^n-1 neighbours, in raster order.
// The border is handled with the mirror-single extension. A neighbour of
// equal value only suppresses the centre when it comes first in raster order,
// so a flat two-pixel summit yields a single peak.
func FindLocalMaxima(img *spot.ArrayImage[float64], threshold float64, threads int) ([]Peak, error) {
	dims := img.Dims()
	n := len(dims)
	offsets := neighbourOffsets(n)
	data := img.Data()
	total := len(data)

	chunks := make([][]Peak, min(NumThreads(threads), max(total, 1)))
	chunkSize := (total + len(chunks) - 1) / len(chunks)
	err := parallelChunks(total, len(chunks), func(lo, hi int) error {
		found := make([]Peak, 0)
		pos := make([]int, n)
		nb := make([]int, n)
		for idx := lo; idx < hi; idx++ {
			v := data[idx]
			if !(v > threshold) {
				continue
			}
			rem := idx
			for d := 0; d < n; d++ {
				pos[d] = rem % dims[d]
				rem /= dims[d]
			}
			isMax := true
			for _, off := range offsets {
				nidx := 0
				for d := 0; d < n; d++ {
					nb[d] = spot.MirrorSingle(pos[d]+off[d], dims[d])
					nidx += nb[d] * img.Stride(d)
				}
				if nidx == idx {
					continue
				}
				w := data[nidx]
				if w > v || (w == v && nidx < idx) {
					isMax = false
					break
				}
			}
			if !isMax {
				continue
			}
			refined := make([]float64, n)
			for d := range pos {
				refined[d] = float64(pos[d])
			}
			found = append(found, Peak{
				Pos:     append([]int(nil), pos...),
				Refined: refined,
				Value:   v,
				Valid:   true,
			})
		}
		chunks[lo/chunkSize] = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	peaks := make([]Peak, 0)
	for _, c := range chunks {
		peaks = append(peaks, c...)
	}
	return peaks, nil
}

// RefineSubpixel fits a quadratic to the neighbourhood of every peak and
// moves its Refined position to the fitted maximum. When the fitted maximum
// lies more than half a pixel away, the fit is repeated from the neighbouring
// pixel, at most maxMoves times. Refinement may leave the image. Peaks whose
// fit is singular keep their integer position and are marked invalid.
func RefineSubpixel(img *spot.ArrayImage[float64], peaks []Peak, maxMoves, threads int) error {
	n := img.NumDimensions()
	unit := make([]float64, n)
	for d := range unit {
		unit[d] = 1
	}
	return parallelChunks(len(peaks), threads, func(lo, hi int) error {
		H := make([]float64, n*(n+1)/2)
		g := make([]float64, n)
		p := make([]int, n)
		for i := lo; i < hi; i++ {
			peak := &peaks[i]
			copy(p, peak.Pos)
			for move := 0; ; move++ {
				H = HessianAt(img, p, unit, H)
				for d := 0; d < n; d++ {
					g[d] = centralDifference(img, p, d, 1)
				}
				offset, ok := newtonStep(H, g)
				if !ok {
					for d := range p {
						peak.Refined[d] = float64(peak.Pos[d])
					}
					peak.Valid = false
					break
				}
				moved := false
				if move < maxMoves {
					for d, o := range offset {
						if o > 0.5 {
							p[d]++
							moved = true
						} else if o < -0.5 {
							p[d]--
							moved = true
						}
					}
				}
				if moved {
					continue
				}
				peak.Valid = true
				for d, o := range offset {
					if math.Abs(o) > 0.5 {
						peak.Valid = false
					}
					peak.Refined[d] = float64(p[d]) + o
				}
				break
			}
		}
		return nil
	})
}

// newtonStep solves H * offset = -g, with H given as its upper triangle.
func newtonStep(H, g []float64) ([]float64, bool) {
	n := len(g)
	sym := mat.NewSymDense(n, nil)
	i := 0
	for r := 0; r < n; r++ {
		for c := r; c < n; c++ {
			sym.SetSym(r, c, H[i])
			i++
		}
	}
	rhs := mat.NewVecDense(n, nil)
	for d, v := range g {
		rhs.SetVec(d, -v)
	}
	var x mat.VecDense
	if err := x.SolveVec(sym, rhs); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for d := range out {
		out[d] = x.AtVec(d)
		if math.IsNaN(out[d]) || math.IsInf(out[d], 0) {
			return nil, false
		}
	}
	return out, true
}

// neighbourOffsets enumerates the 3^n-1 offsets of the full neighbourhood.
func neighbourOffsets(n int) [][]int {
	dims := make([]int, n)
	for d := range dims {
		dims[d] = 3
	}
	offsets := make([][]int, 0)
	pos := make([]int, n)
	spot.ForEach(dims, pos, func(pos []int) {
		off := make([]int, n)
		zero := true
		for d := range pos {
			off[d] = pos[d] - 1
			if off[d] != 0 {
				zero = false
			}
		}
		if !zero {
			offsets = append(offsets, off)
		}
	})
	return offsets
}
