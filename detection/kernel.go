package detection

import (
	"fmt"
	"math"

	"github.com/LdDl/spottrack-go/spot"
	"gonum.org/v1/gonum/floats"
)

// Kernel is a dense, immutable convolution kernel stored in X-fastest order.
// Every size is odd and the kernel origin is at Dims[d]/2.
type Kernel struct {
	Dims []int
	Data []float64
}

// NumDimensions returns the number of axes of the kernel.
func (k *Kernel) NumDimensions() int { return len(k.Dims) }

// Center returns the index of the kernel origin along axis d.
func (k *Kernel) Center(d int) int { return k.Dims[d] / 2 }

// Sum returns the sum of all kernel values.
func (k *Kernel) Sum() float64 { return floats.Sum(k.Data) }

// CreateLoGKernel builds the Laplacian of Gaussian kernel matched to blobs of
// the given physical radius.
func CreateLoGKernel(radius float64, nDims int, calibration []float64) (*Kernel, error) {
	return CreateLoGKernelAnisotropic(radius, radius, nDims, calibration)
}

// CreateLoGKernelAnisotropic builds a LoG kernel with a separate radius for
// the Z axis. The sign is such that bright blobs give a positive response.
func CreateLoGKernelAnisotropic(radiusXY, radiusZ float64, nDims int, calibration []float64) (*Kernel, error) {
	return logKernel(radiusXY, radiusZ, identityAxes(nDims), calibration)
}

// logKernel builds the LoG kernel of an image whose axis d is axis axes[d]
// of the source image.
func logKernel(radiusXY, radiusZ float64, axes []int, calibration []float64) (*Kernel, error) {
	nDims := len(axes)
	sigmaPixels, err := kernelSigmas(radiusXY, radiusZ, axes, calibration)
	if err != nil {
		return nil, err
	}
	sigmas := AxisSigmas(radiusXY, radiusZ, axes)
	dims := make([]int, nDims)
	middle := make([]int, nDims)
	size := 1
	for d, s := range sigmaPixels {
		hksizes := kernelHalfSize(s)
		dims[d] = 3 + 2*hksizes
		middle[d] = 1 + hksizes
		size *= dims[d]
	}
	data := make([]float64, size)

	// Peak response is of the order of the raw blob intensity for a blob of
	// the tuned size.
	C := 1. / math.Pi / sigmaPixels[0] / sigmaPixels[0]

	coords := make([]int, nDims)
	i := 0
	spot.ForEach(dims, coords, func(coords []int) {
		mantissa := 0.
		exponent := 0.
		for d := 0; d < nDims; d++ {
			x := calibration[d] * float64(coords[d]-middle[d])
			exponent += x * x / 2. / sigmas[d] / sigmas[d]
			mantissa += 1. / sigmas[d] / sigmas[d] * (x*x/sigmas[d]/sigmas[d] - 1)
		}
		data[i] = -C * mantissa * math.Exp(-exponent)
		i++
	})
	return &Kernel{Dims: dims, Data: data}, nil
}

// CreateGaussianKernel builds a normalized Gaussian kernel whose extent
// follows the LoG kernel extent rule for the same radii.
func CreateGaussianKernel(radiusXY, radiusZ float64, nDims int, calibration []float64) (*Kernel, error) {
	return gaussianKernel(radiusXY, radiusZ, identityAxes(nDims), calibration)
}

func gaussianKernel(radiusXY, radiusZ float64, axes []int, calibration []float64) (*Kernel, error) {
	nDims := len(axes)
	sigmaPixels, err := kernelSigmas(radiusXY, radiusZ, axes, calibration)
	if err != nil {
		return nil, err
	}
	dims := make([]int, nDims)
	middle := make([]int, nDims)
	size := 1
	for d, s := range sigmaPixels {
		hk := kernelHalfSize(s)
		dims[d] = 3 + 2*hk
		middle[d] = 1 + hk
		size *= dims[d]
	}
	data := make([]float64, size)
	coords := make([]int, nDims)
	i := 0
	spot.ForEach(dims, coords, func(coords []int) {
		exponent := 0.
		for d := 0; d < nDims; d++ {
			x := float64(coords[d] - middle[d])
			exponent -= x * x / 2. / sigmaPixels[d] / sigmaPixels[d]
		}
		data[i] = math.Exp(exponent)
		i++
	})
	floats.Scale(1/floats.Sum(data), data)
	return &Kernel{Dims: dims, Data: data}, nil
}

// KernelSigmas returns the physical sigma of every axis for a blob of the
// given radii: radius / sqrt(nDims), XY radius on axes 0-1, Z radius on axis 2.
func KernelSigmas(radiusXY, radiusZ float64, nDims int) []float64 {
	return AxisSigmas(radiusXY, radiusZ, identityAxes(nDims))
}

// AxisSigmas is KernelSigmas for an image with squeezed axes: axes[d] is the
// source axis of axis d, and only source axis 2 takes the Z radius.
func AxisSigmas(radiusXY, radiusZ float64, axes []int) []float64 {
	norm := math.Sqrt(float64(len(axes)))
	out := make([]float64, len(axes))
	for d, src := range axes {
		if src == 2 {
			out[d] = radiusZ / norm
		} else {
			out[d] = radiusXY / norm
		}
	}
	return out
}

func identityAxes(nDims int) []int {
	axes := make([]int, max(nDims, 0))
	for d := range axes {
		axes[d] = d
	}
	return axes
}

func kernelSigmas(radiusXY, radiusZ float64, axes []int, calibration []float64) ([]float64, error) {
	nDims := len(axes)
	if nDims < 1 || nDims > 3 {
		return nil, &spot.InputError{Op: "Kernel", Reason: fmt.Sprintf("kernel must be 1D, 2D or 3D, got %dD", nDims)}
	}
	if len(calibration) < nDims {
		return nil, &spot.InputError{Op: "Kernel", Reason: fmt.Sprintf("calibration has %d axes, kernel needs %d", len(calibration), nDims)}
	}
	if !(radiusXY > 0) || !(radiusZ > 0) {
		return nil, &spot.InputError{Op: "Kernel", Reason: fmt.Sprintf("radius must be positive, got %v and %v", radiusXY, radiusZ)}
	}
	sigmas := AxisSigmas(radiusXY, radiusZ, axes)
	for d := range sigmas {
		if !(calibration[d] > 0) {
			return nil, &spot.InputError{Op: "Kernel", Reason: fmt.Sprintf("pixel size along axis %d must be positive, got %v", d, calibration[d])}
		}
		sigmas[d] /= calibration[d]
	}
	return sigmas, nil
}

func kernelHalfSize(sigmaPixels float64) int {
	return max(2, int(3*sigmaPixels+0.5)+1)
}
