package spot

import "fmt"

// Interval is an inclusive, axis-aligned box of pixel coordinates.
type Interval struct {
	Min []int
	Max []int
}

// NewInterval returns the interval [min, max] (inclusive).
func NewInterval(min, max []int) Interval {
	return Interval{Min: append([]int(nil), min...), Max: append([]int(nil), max...)}
}

// FromDims returns the interval covering an image of the given sizes.
func FromDims(dims []int) Interval {
	iv := Interval{Min: make([]int, len(dims)), Max: make([]int, len(dims))}
	for d, n := range dims {
		iv.Max[d] = n - 1
	}
	return iv
}

// NumDimensions returns the number of axes of the interval.
func (iv Interval) NumDimensions() int { return len(iv.Min) }

// Dimension returns the number of pixels along axis d.
func (iv Interval) Dimension(d int) int { return iv.Max[d] - iv.Min[d] + 1 }

// Dimensions returns the number of pixels along every axis.
func (iv Interval) Dimensions() []int {
	out := make([]int, len(iv.Min))
	for d := range out {
		out[d] = iv.Dimension(d)
	}
	return out
}

// Size returns the number of pixels in the interval.
func (iv Interval) Size() int {
	n := 1
	for d := range iv.Min {
		n *= iv.Dimension(d)
	}
	return n
}

// Validate checks the interval is non-empty and fits the given image sizes.
func (iv Interval) Validate(dims []int) error {
	if len(iv.Min) != len(iv.Max) {
		return &InputError{Op: "Interval", Reason: "min and max have different lengths"}
	}
	if len(iv.Min) != len(dims) {
		return &InputError{Op: "Interval", Reason: fmt.Sprintf("interval is %dD but image is %dD", len(iv.Min), len(dims))}
	}
	for d := range iv.Min {
		if iv.Min[d] > iv.Max[d] {
			return &InputError{Op: "Interval", Reason: fmt.Sprintf("empty interval along axis %d", d)}
		}
		if iv.Min[d] < 0 || iv.Max[d] >= dims[d] {
			return &InputError{Op: "Interval", Reason: fmt.Sprintf("interval [%d, %d] exceeds image bounds [0, %d] along axis %d", iv.Min[d], iv.Max[d], dims[d]-1, d)}
		}
	}
	return nil
}

// Contains reports whether pos lies inside the interval.
func (iv Interval) Contains(pos []int) bool {
	for d := range iv.Min {
		if pos[d] < iv.Min[d] || pos[d] > iv.Max[d] {
			return false
		}
	}
	return true
}

// Expand grows the interval by border pixels on both sides of every axis.
func (iv Interval) Expand(border int) Interval {
	out := NewInterval(iv.Min, iv.Max)
	for d := range out.Min {
		out.Min[d] -= border
		out.Max[d] += border
	}
	return out
}

// Clamp restricts the interval to the image of the given sizes.
func (iv Interval) Clamp(dims []int) Interval {
	out := NewInterval(iv.Min, iv.Max)
	for d := range out.Min {
		out.Min[d] = clampInt(out.Min[d], 0, dims[d]-1)
		out.Max[d] = clampInt(out.Max[d], 0, dims[d]-1)
	}
	return out
}

// Squeeze drops the axes of extent 1. It returns the squeezed interval and
// the indices of the kept axes. An interval with only singleton axes keeps
// its first axis so that the result is never 0D.
func (iv Interval) Squeeze() (Interval, []int) {
	kept := make([]int, 0, len(iv.Min))
	for d := range iv.Min {
		if iv.Dimension(d) > 1 {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 && len(iv.Min) > 0 {
		kept = append(kept, 0)
	}
	out := Interval{Min: make([]int, len(kept)), Max: make([]int, len(kept))}
	for i, d := range kept {
		out.Min[i] = iv.Min[d]
		out.Max[i] = iv.Max[d]
	}
	return out, kept
}

func (iv Interval) String() string {
	return fmt.Sprintf("%v -> %v", iv.Min, iv.Max)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
