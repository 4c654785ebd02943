package spot

import (
	"fmt"
	"math"
)

// Calibration holds the physical size of a pixel along every axis.
type Calibration []float64

// Uniform returns a calibration of n axes with size 1.
func Uniform(n int) Calibration {
	c := make(Calibration, n)
	for i := range c {
		c[i] = 1
	}
	return c
}

// Validate checks that every pixel size is finite and positive.
func (c Calibration) Validate() error {
	if len(c) == 0 {
		return &InputError{Op: "Calibration", Reason: "calibration is empty"}
	}
	for d, v := range c {
		if !(v > 0) || math.IsInf(v, 0) {
			return &InputError{Op: "Calibration", Reason: fmt.Sprintf("pixel size along axis %d must be positive, got %v", d, v)}
		}
	}
	return nil
}

// At returns the pixel size of axis d, 1 for axes the calibration does not cover.
func (c Calibration) At(d int) float64 {
	if d < len(c) {
		return c[d]
	}
	return 1
}

// Keep returns the calibration restricted to the given axes.
func (c Calibration) Keep(axes []int) Calibration {
	out := make(Calibration, len(axes))
	for i, d := range axes {
		out[i] = c.At(d)
	}
	return out
}
