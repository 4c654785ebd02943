package detection

import (
	"fmt"

	"github.com/LdDl/spottrack-go/spot"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Convolve convolves src with k in the Fourier domain and returns an image of
// the same size and calibration. Samples outside src are taken from its
// mirror-single extension. threads <= 0 uses every CPU.
func Convolve(src *spot.ArrayImage[float64], k *Kernel, threads int) (*spot.ArrayImage[float64], error) {
	n := src.NumDimensions()
	if k.NumDimensions() != n {
		return nil, &spot.InputError{Op: "Convolve", Reason: fmt.Sprintf("kernel is %dD but image is %dD", k.NumDimensions(), n)}
	}
	dims := src.Dims()
	half := make([]int, n)
	padded := make([]int, n)
	for d := 0; d < n; d++ {
		half[d] = k.Center(d)
		padded[d] = nextFastSize(dims[d] + k.Dims[d] - 1)
	}
	total := 1
	for _, p := range padded {
		total *= p
	}
	strides := make([]int, n)
	stride := 1
	for d := range padded {
		strides[d] = stride
		stride *= padded[d]
	}

	// Image samples at padded position p come from source position p - half,
	// so output x lands at x + 2*half after the circular convolution.
	signal := make([]complex128, total)
	span := make([]int, n)
	for d := range span {
		span[d] = dims[d] + 2*half[d]
	}
	pos := make([]int, n)
	srcPos := make([]int, n)
	spot.ForEach(span, pos, func(pos []int) {
		idx := 0
		for d := range pos {
			srcPos[d] = pos[d] - half[d]
			idx += pos[d] * strides[d]
		}
		signal[idx] = complex(src.AtMirror(srcPos), 0)
	})

	filter := make([]complex128, total)
	kpos := make([]int, n)
	i := 0
	spot.ForEach(k.Dims, kpos, func(kpos []int) {
		idx := 0
		for d := range kpos {
			idx += kpos[d] * strides[d]
		}
		filter[idx] = complex(k.Data[i], 0)
		i++
	})

	if err := fftN(signal, padded, strides, false, threads); err != nil {
		return nil, err
	}
	if err := fftN(filter, padded, strides, false, threads); err != nil {
		return nil, err
	}
	for j := range signal {
		signal[j] *= filter[j]
	}
	if err := fftN(signal, padded, strides, true, threads); err != nil {
		return nil, err
	}

	out, err := spot.NewArrayImage[float64](dims, src.Calibration())
	if err != nil {
		return nil, err
	}
	norm := 1 / float64(total)
	data := out.Data()
	opos := make([]int, n)
	j := 0
	spot.ForEach(dims, opos, func(opos []int) {
		idx := 0
		for d := range opos {
			idx += (opos[d] + 2*half[d]) * strides[d]
		}
		data[j] = real(signal[idx]) * norm
		j++
	})
	return out, nil
}

// fftN transforms data in place along every axis. The inverse transform is
// not normalized.
func fftN(data []complex128, dims, strides []int, inverse bool, threads int) error {
	total := len(data)
	for d, length := range dims {
		if length == 1 {
			continue
		}
		stride := strides[d]
		starts := make([]int, 0, total/length)
		for idx := 0; idx < total; idx++ {
			if (idx/stride)%length == 0 {
				starts = append(starts, idx)
			}
		}
		err := parallelChunks(len(starts), threads, func(lo, hi int) error {
			fft := fourier.NewCmplxFFT(length)
			line := make([]complex128, length)
			spectrum := make([]complex128, length)
			for _, start := range starts[lo:hi] {
				for j := range line {
					line[j] = data[start+j*stride]
				}
				if inverse {
					spectrum = fft.Sequence(spectrum, line)
				} else {
					spectrum = fft.Coefficients(spectrum, line)
				}
				for j := range spectrum {
					data[start+j*stride] = spectrum[j]
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// nextFastSize returns the smallest integer >= n whose only prime factors are 2, 3 and 5.
func nextFastSize(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		r := m
		for _, p := range [3]int{2, 3, 5} {
			for r%p == 0 {
				r /= p
			}
		}
		if r == 1 {
			return m
		}
	}
}
