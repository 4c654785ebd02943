package spot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpot(t *testing.T) {
	s, err := NewSpot([]float64{1.5, 2.5}, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumDimensions())
	assert.Equal(t, [3]float64{1.5, 2.5, 0}, s.Position())
	assert.Equal(t, 3.0, s.Radius())
	assert.Equal(t, 10.0, s.Quality())
	assert.Equal(t, -1, s.Frame())

	s.PutFeature(FeatureFrame, 4)
	assert.Equal(t, 4, s.Frame())

	other := MustSpot([]float64{4.5, 6.5}, 1, 1)
	assert.NotEqual(t, s.ID(), other.ID())
	assert.InDelta(t, 25.0, s.SquareDistanceTo(other), 1e-12)
	assert.InDelta(t, 5.0, s.DistanceTo(other), 1e-12)

	_, err = NewSpot(nil, 1, 1)
	var inErr *InputError
	require.ErrorAs(t, err, &inErr)
	_, err = NewSpot([]float64{1, 2, 3, 4}, 1, 1)
	require.ErrorAs(t, err, &inErr)
}

func TestMirror(t *testing.T) {
	single := []int{}
	double := []int{}
	for i := -4; i < 9; i++ {
		single = append(single, MirrorSingle(i, 5))
		double = append(double, MirrorDouble(i, 5))
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0, 1, 2, 3, 4, 3, 2, 1, 0}, single)
	assert.Equal(t, []int{3, 2, 1, 0, 0, 1, 2, 3, 4, 4, 3, 2, 1}, double)
	assert.Equal(t, 0, MirrorSingle(-3, 1))
	assert.Equal(t, 0, MirrorDouble(7, 1))
}

func TestIntervalSqueezeClamp(t *testing.T) {
	iv := NewInterval([]int{2, 5, 7}, []int{9, 5, 12})
	sq, kept := iv.Squeeze()
	assert.Equal(t, []int{0, 2}, kept)
	assert.Equal(t, []int{2, 7}, sq.Min)
	assert.Equal(t, []int{9, 12}, sq.Max)

	single := NewInterval([]int{3, 3}, []int{3, 3})
	sq, kept = single.Squeeze()
	assert.Equal(t, []int{0}, kept)
	assert.Equal(t, 1, sq.NumDimensions())

	clamped := NewInterval([]int{-3, 4}, []int{5, 40}).Clamp([]int{10, 20})
	assert.Equal(t, []int{0, 4}, clamped.Min)
	assert.Equal(t, []int{5, 19}, clamped.Max)

	assert.Equal(t, []int{8, 37}, NewInterval([]int{0, 0}, []int{5, 34}).Expand(1).Dimensions())
	require.Error(t, NewInterval([]int{0, 0}, []int{10, 3}).Validate([]int{10, 10}))
	require.NoError(t, NewInterval([]int{0, 0}, []int{9, 3}).Validate([]int{10, 10}))
}

func TestCrop(t *testing.T) {
	img, err := NewArrayImage[uint16]([]int{4, 3}, Calibration{0.5, 0.5})
	require.NoError(t, err)
	for i := range img.Data() {
		img.Data()[i] = uint16(i)
	}
	assert.Equal(t, uint16(6), img.At([]int{2, 1}))
	assert.Equal(t, uint16(5), img.AtMirror([]int{-1, 1}))

	c, err := Crop[uint16](img, NewInterval([]int{1, 1}, []int{3, 2}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, c.Dims())
	assert.Equal(t, []uint16{5, 6, 7, 9, 10, 11}, c.Data())
	assert.Equal(t, Calibration{0.5, 0.5}, c.Calibration())

	_, err = Crop[uint16](img, NewInterval([]int{1, 1}, []int{4, 2}))
	require.Error(t, err)
}

func TestHyperstack(t *testing.T) {
	h, err := NewHyperstack[float32]([]int{8, 8}, nil, 2, 3)
	require.NoError(t, err)
	f, err := h.Frame(1, 2)
	require.NoError(t, err)
	f.Set([]int{1, 1}, 7)
	again, err := h.Frame(1, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(7), again.At([]int{1, 1}))

	_, err = h.Frame(2, 0)
	var inErr *InputError
	require.ErrorAs(t, err, &inErr)
	_, err = h.Frame(0, 3)
	require.ErrorAs(t, err, &inErr)
}
