package detection

import (
	"math"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
)

// HessianDetector finds blobs as maxima of the scale-normalized determinant
// of the Hessian of a Gaussian-smoothed image. The sign is chosen so that
// bright blobs respond positively in 1D, 2D and 3D.
type HessianDetector[T spot.Sample] struct {
	img         spot.Image[T]
	interval    spot.Interval
	calibration spot.Calibration
	radiusXY    float64
	radiusZ     float64
	threshold   float64
	normalize   bool
	doSubpixel  bool
	numThreads  int
}

// NewHessianDetector creates a Hessian detector for the interval of img.
func NewHessianDetector[T spot.Sample](img spot.Image[T], interval spot.Interval, calibration spot.Calibration, radiusXY, radiusZ, threshold float64, normalize, doSubpixel bool) *HessianDetector[T] {
	return &HessianDetector[T]{
		img:         img,
		interval:    interval,
		calibration: calibration,
		radiusXY:    radiusXY,
		radiusZ:     radiusZ,
		threshold:   threshold,
		normalize:   normalize,
		doSubpixel:  doSubpixel,
	}
}

// SetNumThreads bounds the worker pool, n <= 0 means one worker per CPU.
func (d *HessianDetector[T]) SetNumThreads(n int) {
	d.numThreads = n
}

// Process runs the detection.
func (d *HessianDetector[T]) Process() ([]*spot.Spot, error) {
	const op = "HessianDetector"
	p, err := prepare(op, d.img, d.interval, d.calibration)
	if err != nil {
		return nil, err
	}
	if !(d.radiusXY > 0) || !(d.radiusZ > 0) {
		return nil, &spot.InputError{Op: op, Reason: "radius must be positive"}
	}
	src := p.img
	kernel, err := gaussianKernel(d.radiusXY, d.radiusZ, p.kept, src.Calibration())
	if err != nil {
		return nil, &spot.InputError{Op: op, Reason: err.Error()}
	}
	smoothed, err := Convolve(src, kernel, d.numThreads)
	if err != nil {
		return nil, errors.Wrap(err, "gaussian smoothing")
	}
	response, err := d.determinant(smoothed, AxisSigmas(d.radiusXY, d.radiusZ, p.kept))
	if err != nil {
		return nil, err
	}
	peaks, err := FindLocalMaxima(response, d.threshold, d.numThreads)
	if err != nil {
		return nil, errors.Wrap(err, "local maxima")
	}
	if d.doSubpixel {
		if err := RefineSubpixel(response, peaks, DefaultMaxMoves, d.numThreads); err != nil {
			return nil, errors.Wrap(err, "sub-pixel refinement")
		}
	}
	return p.spots(peaks, d.radiusXY, d.doSubpixel), nil
}

// determinant computes det(-H) * prod(sigma^2) at every pixel, optionally
// normalized by its maximum.
func (d *HessianDetector[T]) determinant(smoothed *spot.ArrayImage[float64], sigmas []float64) (*spot.ArrayImage[float64], error) {
	out, err := spot.NewArrayImage[float64](smoothed.Dims(), smoothed.Calibration())
	if err != nil {
		return nil, err
	}
	scale := 1.
	for _, s := range sigmas {
		scale *= s * s
	}
	dims := smoothed.Dims()
	n := len(dims)
	cal := smoothed.Calibration()
	dst := out.Data()
	err = parallelChunks(len(dst), d.numThreads, func(lo, hi int) error {
		pos := make([]int, n)
		var H []float64
		for idx := lo; idx < hi; idx++ {
			rem := idx
			for k := 0; k < n; k++ {
				pos[k] = rem % dims[k]
				rem /= dims[k]
			}
			H = HessianAt(smoothed, pos, cal, H)
			dst[idx] = scale * negDeterminant(H)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if d.normalize {
		maxVal := math.Inf(-1)
		for _, v := range dst {
			maxVal = max(maxVal, v)
		}
		if maxVal > 0 {
			for i := range dst {
				dst[i] /= maxVal
			}
		}
	}
	return out, nil
}

// negDeterminant returns det(-H) for an upper-triangle symmetric matrix.
func negDeterminant(H []float64) float64 {
	switch len(H) {
	case 1:
		return -H[0]
	case 3:
		return H[0]*H[2] - H[1]*H[1]
	case 6:
		a00, a01, a02, a11, a12, a22 := H[0], H[1], H[2], H[3], H[4], H[5]
		det := a00*(a11*a22-a12*a12) - a01*(a01*a22-a12*a02) + a02*(a01*a12-a11*a02)
		return -det
	}
	return 0
}
