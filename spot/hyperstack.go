package spot

import "fmt"

// Hyperstack is a time-lapse, multi-channel image: one spatial image per
// (channel, frame) pair, all with the same sizes and calibration.
type Hyperstack[T Sample] struct {
	channels int
	frames   int
	dims     []int
	cal      Calibration
	planes   []*ArrayImage[T]
}

// NewHyperstack allocates a zero-filled hyperstack.
func NewHyperstack[T Sample](dims []int, cal Calibration, channels, frames int) (*Hyperstack[T], error) {
	if channels < 1 || frames < 1 {
		return nil, &InputError{Op: "NewHyperstack", Reason: fmt.Sprintf("need at least one channel and one frame, got %d and %d", channels, frames)}
	}
	h := &Hyperstack[T]{
		channels: channels,
		frames:   frames,
		planes:   make([]*ArrayImage[T], channels*frames),
	}
	for i := range h.planes {
		img, err := NewArrayImage[T](dims, cal)
		if err != nil {
			return nil, err
		}
		h.planes[i] = img
	}
	h.dims = h.planes[0].dims
	h.cal = h.planes[0].cal
	return h, nil
}

// NewHyperstackFrom builds a single-channel hyperstack out of per-frame images.
func NewHyperstackFrom[T Sample](frames []*ArrayImage[T]) (*Hyperstack[T], error) {
	if len(frames) == 0 {
		return nil, &InputError{Op: "NewHyperstackFrom", Reason: "no frames"}
	}
	first := frames[0]
	for t, f := range frames[1:] {
		if len(f.dims) != len(first.dims) {
			return nil, &InputError{Op: "NewHyperstackFrom", Reason: fmt.Sprintf("frame %d is %dD, frame 0 is %dD", t+1, len(f.dims), len(first.dims))}
		}
		for d := range f.dims {
			if f.dims[d] != first.dims[d] {
				return nil, &InputError{Op: "NewHyperstackFrom", Reason: fmt.Sprintf("frame %d has size %v, frame 0 has %v", t+1, f.dims, first.dims)}
			}
		}
	}
	return &Hyperstack[T]{
		channels: 1,
		frames:   len(frames),
		dims:     first.dims,
		cal:      first.cal,
		planes:   append([]*ArrayImage[T](nil), frames...),
	}, nil
}

// NumChannels returns the number of channels.
func (h *Hyperstack[T]) NumChannels() int { return h.channels }

// NumFrames returns the number of frames.
func (h *Hyperstack[T]) NumFrames() int { return h.frames }

// Dims returns the spatial sizes shared by every plane.
func (h *Hyperstack[T]) Dims() []int { return h.dims }

// Calibration returns the spatial calibration shared by every plane.
func (h *Hyperstack[T]) Calibration() Calibration { return h.cal }

// Frame returns the spatial image of one channel at one frame. Both indices are 0-based.
func (h *Hyperstack[T]) Frame(channel, frame int) (*ArrayImage[T], error) {
	if channel < 0 || channel >= h.channels {
		return nil, &InputError{Op: "Hyperstack", Reason: fmt.Sprintf("channel %d out of range [0, %d)", channel, h.channels)}
	}
	if frame < 0 || frame >= h.frames {
		return nil, &InputError{Op: "Hyperstack", Reason: fmt.Sprintf("frame %d out of range [0, %d)", frame, h.frames)}
	}
	return h.planes[frame*h.channels+channel], nil
}
