package detection

import (
	"math"
	"sort"

	"github.com/LdDl/spottrack-go/spot"
)

// HessianAt computes the Hessian matrix of img at pos by central finite
// differences in physical units. The upper triangle is written to dst
// row by row: [a00] in 1D, [a00 a01 a11] in 2D and
// [a00 a01 a02 a11 a12 a22] in 3D. Samples one pixel outside the image come
// from its mirror extension.
func HessianAt(img *spot.ArrayImage[float64], pos []int, calibration []float64, dst []float64) []float64 {
	n := img.NumDimensions()
	nelements := n * (n + 1) / 2
	if cap(dst) < nelements {
		dst = make([]float64, nelements)
	}
	dst = dst[:nelements]
	p := append(make([]int, 0, 3), pos...)
	i := 0
	for d2 := 0; d2 < n; d2++ {
		for d1 := d2; d1 < n; d1++ {
			var ddy float64
			if d1 == d2 {
				y0 := img.AtMirror(p)
				p[d1]--
				ym := img.AtMirror(p)
				p[d1] += 2
				yp := img.AtMirror(p)
				p[d1]--
				ddy = (yp - 2.*y0 + ym) / (calibration[d1] * calibration[d1])
			} else {
				p[d1]--
				dym := centralDifference(img, p, d2, calibration[d2])
				p[d1] += 2
				dyp := centralDifference(img, p, d2, calibration[d2])
				p[d1]--
				ddy = (dyp - dym) / (2. * calibration[d1])
			}
			dst[i] = ddy
			i++
		}
	}
	return dst
}

func centralDifference(img *spot.ArrayImage[float64], p []int, d int, dx float64) float64 {
	p[d]--
	ym := img.AtMirror(p)
	p[d] += 2
	yp := img.AtMirror(p)
	p[d]--
	return (yp - ym) / (2. * dx)
}

// HessianEigenvalues returns the eigenvalues of the symmetric matrix whose
// upper triangle is H (layout of HessianAt). 1x1, 2x2 and 3x3 are supported.
func HessianEigenvalues(H []float64) []float64 {
	switch len(H) {
	case 1:
		return []float64{H[0]}
	case 3:
		a00, a01, a11 := H[0], H[1], H[2]
		sum := a00 + a11
		diff := a00 - a11
		sqrt := math.Sqrt(4*a01*a01 + diff*diff)
		return []float64{0.5 * (sum + sqrt), 0.5 * (sum - sqrt)}
	case 6:
		return eigenvaluesSymmetric33(H)
	default:
		return nil
	}
}

// Closed form for symmetric 3x3 matrices, after D. Hale's JTK.
func eigenvaluesSymmetric33(H []float64) []float64 {
	a00, a01, a02 := H[0], H[1], H[2]
	a11, a12 := H[3], H[4]
	a22 := H[5]

	de := a01 * a12
	dd := a01 * a01
	ee := a12 * a12
	ff := a02 * a02
	c2 := a00 + a11 + a22
	c1 := (a00*a11 + a00*a22 + a11*a22) - (dd + ee + ff)
	c0 := a22*dd + a00*ee + a11*ff - a00*a11*a22 - 2.0*a02*de
	p := c2*c2 - 3.0*c1
	q := c2*(p-1.5*c1) - 13.5*c0
	t := 27.0 * (0.25*c1*c1*(p-c1) + c0*(q+6.75*c0))
	phi := 1. / 3. * math.Atan2(math.Sqrt(math.Abs(t)), q)
	sqrtp := math.Sqrt(math.Abs(p))
	c := sqrtp * math.Cos(phi)
	s := 1. / math.Sqrt(3.) * sqrtp * math.Sin(phi)
	dt := 1. / 3. * (c2 - c)
	return []float64{dt + c, dt + s, dt - s}
}

// BlobStrength returns the ratio of the smallest to the largest absolute
// eigenvalue. It is 1 for isotropic blobs and close to 0 for lines and
// planes. evs is not modified.
func BlobStrength(evs []float64) float64 {
	if len(evs) == 0 {
		return 0
	}
	abs := make([]float64, len(evs))
	for i, ev := range evs {
		abs[i] = math.Abs(ev)
	}
	sort.Float64s(abs)
	if abs[len(abs)-1] == 0 {
		return 0
	}
	return abs[0] / abs[len(abs)-1]
}
