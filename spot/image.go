package spot

import "fmt"

// Sample constrains the pixel types images may hold.
type Sample interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Image is random access to a 1D, 2D or 3D calibrated image.
// Axis 0 is X, axis 1 is Y and axis 2 is Z.
type Image[T Sample] interface {
	NumDimensions() int
	Dimension(d int) int
	Calibration() Calibration
	// At returns the sample at pos. pos must lie inside the image.
	At(pos []int) T
}

// ArrayImage is a dense image stored in X-fastest order.
type ArrayImage[T Sample] struct {
	dims    []int
	strides []int
	cal     Calibration
	data    []T
}

// NewArrayImage allocates a zero-filled image. A nil calibration means 1 per axis.
func NewArrayImage[T Sample](dims []int, cal Calibration) (*ArrayImage[T], error) {
	if len(dims) < 1 || len(dims) > 3 {
		return nil, &InputError{Op: "NewArrayImage", Reason: fmt.Sprintf("image must be 1D, 2D or 3D, got %dD", len(dims))}
	}
	size := 1
	for d, n := range dims {
		if n < 1 {
			return nil, &InputError{Op: "NewArrayImage", Reason: fmt.Sprintf("dimension %d has size %d", d, n)}
		}
		size *= n
	}
	if cal == nil {
		cal = Uniform(len(dims))
	}
	if len(cal) != len(dims) {
		return nil, &InputError{Op: "NewArrayImage", Reason: fmt.Sprintf("calibration has %d axes, image has %d", len(cal), len(dims))}
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return newArrayImage(dims, cal, make([]T, size)), nil
}

// WrapArrayImage creates an image backed by data, which must hold Π dims samples.
func WrapArrayImage[T Sample](dims []int, cal Calibration, data []T) (*ArrayImage[T], error) {
	img, err := NewArrayImage[T](dims, cal)
	if err != nil {
		return nil, err
	}
	if len(data) != len(img.data) {
		return nil, &InputError{Op: "WrapArrayImage", Reason: fmt.Sprintf("data has %d samples, expected %d", len(data), len(img.data))}
	}
	img.data = data
	return img, nil
}

func newArrayImage[T Sample](dims []int, cal Calibration, data []T) *ArrayImage[T] {
	strides := make([]int, len(dims))
	stride := 1
	for d, n := range dims {
		strides[d] = stride
		stride *= n
	}
	return &ArrayImage[T]{
		dims:    append([]int(nil), dims...),
		strides: strides,
		cal:     append(Calibration(nil), cal...),
		data:    data,
	}
}

func (img *ArrayImage[T]) NumDimensions() int       { return len(img.dims) }
func (img *ArrayImage[T]) Dimension(d int) int      { return img.dims[d] }
func (img *ArrayImage[T]) Calibration() Calibration { return img.cal }

// Dims returns the image sizes. The returned slice must not be modified.
func (img *ArrayImage[T]) Dims() []int { return img.dims }

// Data returns the backing samples in X-fastest order.
func (img *ArrayImage[T]) Data() []T { return img.data }

// Index returns the linear index of pos.
func (img *ArrayImage[T]) Index(pos []int) int {
	idx := 0
	for d, p := range pos {
		idx += p * img.strides[d]
	}
	return idx
}

// Stride returns the linear distance between neighbours along axis d.
func (img *ArrayImage[T]) Stride(d int) int { return img.strides[d] }

func (img *ArrayImage[T]) At(pos []int) T { return img.data[img.Index(pos)] }

// Set writes v at pos.
func (img *ArrayImage[T]) Set(pos []int, v T) { img.data[img.Index(pos)] = v }

// AtMirror samples the mirror-single extension of the image: coordinates
// outside the image are reflected about the border pixel without repeating it.
func (img *ArrayImage[T]) AtMirror(pos []int) T {
	idx := 0
	for d, p := range pos {
		idx += MirrorSingle(p, img.dims[d]) * img.strides[d]
	}
	return img.data[idx]
}

// Crop copies the interval out of src into a new image with the same calibration.
func Crop[T Sample](src Image[T], iv Interval) (*ArrayImage[T], error) {
	dims := make([]int, src.NumDimensions())
	for d := range dims {
		dims[d] = src.Dimension(d)
	}
	if err := iv.Validate(dims); err != nil {
		return nil, err
	}
	out, err := NewArrayImage[T](iv.Dimensions(), src.Calibration())
	if err != nil {
		return nil, err
	}
	pos := make([]int, len(dims))
	local := make([]int, len(dims))
	ForEach(out.dims, local, func(local []int) {
		for d := range pos {
			pos[d] = local[d] + iv.Min[d]
		}
		out.Set(local, src.At(pos))
	})
	return out, nil
}

// ForEach visits every position of an image of the given sizes in X-fastest
// order, reusing pos between calls.
func ForEach(dims []int, pos []int, fn func(pos []int)) {
	for d := range pos {
		pos[d] = 0
	}
	n := 1
	for _, s := range dims {
		n *= s
	}
	for i := 0; i < n; i++ {
		fn(pos)
		for d := 0; d < len(dims); d++ {
			pos[d]++
			if pos[d] < dims[d] {
				break
			}
			pos[d] = 0
		}
	}
}

// MirrorSingle folds i into [0, n) by reflecting about the border pixels
// (..., 2, 1, 0, 1, 2, ..., n-2, n-1, n-2, ...).
func MirrorSingle(i, n int) int {
	if n == 1 {
		return 0
	}
	if i >= 0 && i < n {
		return i
	}
	period := 2*n - 2
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// MirrorDouble folds i into [0, n) by reflecting with the border pixel repeated
// (..., 1, 0, 0, 1, ..., n-1, n-1, n-2, ...).
func MirrorDouble(i, n int) int {
	if i >= 0 && i < n {
		return i
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
