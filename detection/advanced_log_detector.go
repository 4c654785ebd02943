package detection

import (
	"github.com/LdDl/spottrack-go/spot"
)

// AdvancedLogDetector is a LoG detector that also measures how round every
// spot is. The ratio of the smallest to the largest absolute eigenvalue of
// the Hessian of the filtered image at the spot is stored as the
// spot.FeatureBlobRatio feature, and spots below the blob ratio threshold are
// discarded. The kernel takes a separate radius along Z.
type AdvancedLogDetector[T spot.Sample] struct {
	img                spot.Image[T]
	interval           spot.Interval
	calibration        spot.Calibration
	radius             float64
	radiusZ            float64
	threshold          float64
	thresholdBlobRatio float64
	doSubpixel         bool
	doMedian           bool
	numThreads         int
}

// NewAdvancedLogDetector creates an advanced LoG detector for the interval of img.
func NewAdvancedLogDetector[T spot.Sample](img spot.Image[T], interval spot.Interval, calibration spot.Calibration, radius, radiusZ, threshold, thresholdBlobRatio float64, doSubpixel, doMedian bool) *AdvancedLogDetector[T] {
	return &AdvancedLogDetector[T]{
		img:                img,
		interval:           interval,
		calibration:        calibration,
		radius:             radius,
		radiusZ:            radiusZ,
		threshold:          threshold,
		thresholdBlobRatio: thresholdBlobRatio,
		doSubpixel:         doSubpixel,
		doMedian:           doMedian,
	}
}

// SetNumThreads bounds the worker pool, n <= 0 means one worker per CPU.
func (d *AdvancedLogDetector[T]) SetNumThreads(n int) {
	d.numThreads = n
}

// Process runs the detection.
func (d *AdvancedLogDetector[T]) Process() ([]*spot.Spot, error) {
	const op = "AdvancedLogDetector"
	p, err := prepare(op, d.img, d.interval, d.calibration)
	if err != nil {
		return nil, err
	}
	filtered, peaks, err := logPeaks(op, p, d.radius, d.radiusZ, d.threshold, d.doSubpixel, d.doMedian, d.numThreads)
	if err != nil {
		return nil, err
	}

	cal := filtered.Calibration()
	ratios := make([]float64, len(peaks))
	var H []float64
	for i := range peaks {
		H = HessianAt(filtered, peaks[i].Pos, cal, H)
		ratios[i] = BlobStrength(HessianEigenvalues(H))
	}

	spots := p.spots(peaks, d.radius, d.doSubpixel)
	kept := spots[:0]
	for i, s := range spots {
		if ratios[i] < d.thresholdBlobRatio {
			continue
		}
		s.PutFeature(spot.FeatureBlobRatio, ratios[i])
		kept = append(kept, s)
	}
	return kept, nil
}
