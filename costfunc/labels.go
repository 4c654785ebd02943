package costfunc

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
)

// Labels is a stack of 2D connected-component label images, one layer per
// distance-cache time window. Label 0 is background. A single layer serves
// every window.
type Labels struct {
	width  int
	height int
	layers [][]uint32
}

// NewLabels wraps row-major label layers of width*height values each.
func NewLabels(width, height int, layers ...[]uint32) (*Labels, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("labels: invalid size %dx%d", width, height)
	}
	if len(layers) == 0 {
		return nil, errors.New("labels: no layer")
	}
	for i, l := range layers {
		if len(l) != width*height {
			return nil, errors.Errorf("labels: layer %d has %d values, expected %d", i, len(l), width*height)
		}
	}
	return &Labels{width: width, height: height, layers: layers}, nil
}

// Width returns the number of columns.
func (l *Labels) Width() int { return l.width }

// Height returns the number of rows.
func (l *Labels) Height() int { return l.height }

// NumLayers returns the number of label layers.
func (l *Labels) NumLayers() int { return len(l.layers) }

// Index returns the linear (row-major) index of pixel (x, y).
func (l *Labels) Index(x, y int) int { return y*l.width + x }

// InBounds reports whether (x, y) lies on the grid.
func (l *Labels) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.width && y < l.height
}

// At returns the label of (x, y) in the layer of the given window. Pixels
// off the grid are background.
func (l *Labels) At(window, x, y int) uint32 {
	if !l.InBounds(x, y) {
		return 0
	}
	return l.layer(window)[l.Index(x, y)]
}

func (l *Labels) layer(window int) []uint32 {
	if len(l.layers) == 1 || window < 0 || window >= len(l.layers) {
		return l.layers[0]
	}
	return l.layers[window]
}

// Foreground returns the linear indices of the labelled pixels of a window.
func (l *Labels) Foreground(window int) *roaring.Bitmap {
	bm := roaring.New()
	for i, v := range l.layer(window) {
		if v != 0 {
			bm.Add(uint32(i))
		}
	}
	return bm
}
