package detection

import (
	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
)

// LogDetector finds bright blobs of a given radius with a Laplacian of
// Gaussian filter. Spot quality is the filter response at the maximum.
type LogDetector[T spot.Sample] struct {
	img         spot.Image[T]
	interval    spot.Interval
	calibration spot.Calibration
	radius      float64
	threshold   float64
	doSubpixel  bool
	doMedian    bool
	numThreads  int
}

// NewLogDetector creates a LoG detector for the interval of img.
func NewLogDetector[T spot.Sample](img spot.Image[T], interval spot.Interval, calibration spot.Calibration, radius, threshold float64, doSubpixel, doMedian bool) *LogDetector[T] {
	return &LogDetector[T]{
		img:         img,
		interval:    interval,
		calibration: calibration,
		radius:      radius,
		threshold:   threshold,
		doSubpixel:  doSubpixel,
		doMedian:    doMedian,
		numThreads:  0,
	}
}

// SetNumThreads bounds the worker pool, n <= 0 means one worker per CPU.
func (d *LogDetector[T]) SetNumThreads(n int) {
	d.numThreads = n
}

// Process runs the detection.
func (d *LogDetector[T]) Process() ([]*spot.Spot, error) {
	const op = "LogDetector"
	p, err := prepare(op, d.img, d.interval, d.calibration)
	if err != nil {
		return nil, err
	}
	_, peaks, err := logPeaks(op, p, d.radius, d.radius, d.threshold, d.doSubpixel, d.doMedian, d.numThreads)
	if err != nil {
		return nil, err
	}
	return p.spots(peaks, d.radius, d.doSubpixel), nil
}

// logPeaks filters the prepared image with a LoG kernel and returns the
// filtered image together with its maxima. radiusZ applies to source axis 2
// only.
func logPeaks(op string, p *prepared, radius, radiusZ, threshold float64, doSubpixel, doMedian bool, threads int) (*spot.ArrayImage[float64], []Peak, error) {
	if !(radius > 0) || !(radiusZ > 0) {
		return nil, nil, &spot.InputError{Op: op, Reason: "radius must be positive"}
	}
	src := p.img
	if doMedian {
		var err error
		src, err = MedianFilter3x3(src, threads)
		if err != nil {
			return nil, nil, errors.Wrap(err, "median filter")
		}
	}
	kernel, err := logKernel(radius, radiusZ, p.kept, src.Calibration())
	if err != nil {
		return nil, nil, &spot.InputError{Op: op, Reason: err.Error()}
	}
	filtered, err := Convolve(src, kernel, threads)
	if err != nil {
		return nil, nil, errors.Wrap(err, "LoG convolution")
	}
	peaks, err := FindLocalMaxima(filtered, threshold, threads)
	if err != nil {
		return nil, nil, errors.Wrap(err, "local maxima")
	}
	if doSubpixel {
		if err := RefineSubpixel(filtered, peaks, DefaultMaxMoves, threads); err != nil {
			return nil, nil, errors.Wrap(err, "sub-pixel refinement")
		}
	}
	return filtered, peaks, nil
}
