package detection

import (
	"math"
	"testing"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gaussianBlob renders amp * exp(-sum((x_d - c_d)^2 / 2 sigma_d^2)) on a
// pixel grid, with centre and sigmas in pixel units.
func gaussianBlob(t *testing.T, dims []int, cal spot.Calibration, centre, sigmas []float64, amp float64) *spot.ArrayImage[float32] {
	t.Helper()
	img, err := spot.NewArrayImage[float32](dims, cal)
	require.NoError(t, err)
	addGaussian(img, centre, sigmas, amp)
	return img
}

func addGaussian(img *spot.ArrayImage[float32], centre, sigmas []float64, amp float64) {
	pos := make([]int, img.NumDimensions())
	spot.ForEach(img.Dims(), pos, func(pos []int) {
		e := 0.0
		for d := range pos {
			x := float64(pos[d]) - centre[d]
			e += x * x / 2 / sigmas[d] / sigmas[d]
		}
		img.Set(pos, img.At(pos)+float32(amp*math.Exp(-e)))
	})
}

func TestLogDetectorSingleBlob2D(t *testing.T) {
	img := gaussianBlob(t, []int{40, 36}, nil, []float64{20.3, 17.6}, []float64{2, 2}, 100)
	radius := 2 * math.Sqrt2

	spots, err := Detect[float32](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{
		Method:    MethodLoG,
		Radius:    radius,
		Threshold: 1,
		Subpixel:  true,
		Threads:   2,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	s := spots[0]
	assert.InDelta(t, 20.3, s.X(), 0.5)
	assert.InDelta(t, 17.6, s.Y(), 0.5)
	assert.Equal(t, 0.0, s.Z())
	assert.Equal(t, radius, s.Radius())
	assert.Greater(t, s.Quality(), 1.0)

	spots, err = Detect[float32](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{
		Method:    MethodLoG,
		Radius:    radius,
		Threshold: 1,
		Subpixel:  false,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Less(t, math.Hypot(spots[0].X()-20.3, spots[0].Y()-17.6), 1.0)
	assert.Equal(t, 20.0, spots[0].X())
	assert.Equal(t, 18.0, spots[0].Y())
}

func TestLogDetectorSingleBlob3D(t *testing.T) {
	img := gaussianBlob(t, []int{24, 24, 24}, nil, []float64{11.4, 12.7, 11.8}, []float64{2, 2, 2}, 100)
	spots, err := Detect[float32](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{
		Method:    MethodLoG,
		Radius:    2 * math.Sqrt(3),
		Threshold: 1,
		Subpixel:  true,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	p := spots[0].Position()
	assert.InDelta(t, 11.4, p[0], 0.5)
	assert.InDelta(t, 12.7, p[1], 0.5)
	assert.InDelta(t, 11.8, p[2], 0.5)
}

func TestLogDetectorCalibratedInterval(t *testing.T) {
	// 0.5 um pixels, blob at pixel (30.2, 21.7) inside a 20x16 interval.
	cal := spot.Calibration{0.5, 0.5}
	img := gaussianBlob(t, []int{48, 40}, cal, []float64{30.2, 21.7}, []float64{2, 2}, 50)
	iv := spot.NewInterval([]int{20, 14}, []int{39, 29})
	spots, err := NewLogDetector[float32](img, iv, cal, 2*math.Sqrt2*0.5, 1, true, false).Process()
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.InDelta(t, 30.2*0.5, spots[0].X(), 0.25)
	assert.InDelta(t, 21.7*0.5, spots[0].Y(), 0.25)
}

func TestLogDetectorSqueezesSingletonAxes(t *testing.T) {
	img, err := spot.NewArrayImage[float32]([]int{32, 30, 5}, spot.Calibration{1, 1, 2})
	require.NoError(t, err)
	pos := make([]int, 3)
	spot.ForEach(img.Dims(), pos, func(pos []int) {
		if pos[2] != 2 {
			return
		}
		dx, dy := float64(pos[0])-15.4, float64(pos[1])-14.2
		img.Set(pos, float32(80*math.Exp(-(dx*dx+dy*dy)/8)))
	})
	iv := spot.NewInterval([]int{0, 0, 2}, []int{31, 29, 2})
	spots, err := NewLogDetector[float32](img, iv, img.Calibration(), 2*math.Sqrt2, 1, true, true).Process()
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, 3, spots[0].NumDimensions())
	assert.InDelta(t, 15.4, spots[0].X(), 0.5)
	assert.InDelta(t, 14.2, spots[0].Y(), 0.5)
	assert.Equal(t, 4.0, spots[0].Z())
}

func TestAdvancedLogDetectorBlobRatio(t *testing.T) {
	img := gaussianBlob(t, []int{64, 40}, nil, []float64{16.2, 20.3}, []float64{2, 2}, 100)
	addGaussian(img, []float64{46.1, 19.6}, []float64{3, 1.5}, 100)
	all := spot.FromDims(img.Dims())

	spots, err := NewAdvancedLogDetector[float32](img, all, img.Calibration(), 2*math.Sqrt2, 2*math.Sqrt2, 1, 0, true, false).Process()
	require.NoError(t, err)
	require.Len(t, spots, 2)
	var round, elongated *spot.Spot
	for _, s := range spots {
		if s.X() < 32 {
			round = s
		} else {
			elongated = s
		}
	}
	require.NotNil(t, round)
	require.NotNil(t, elongated)
	roundRatio, ok := round.Feature(spot.FeatureBlobRatio)
	require.True(t, ok)
	elongatedRatio, ok := elongated.Feature(spot.FeatureBlobRatio)
	require.True(t, ok)
	assert.Greater(t, roundRatio, 0.85)
	assert.Less(t, elongatedRatio, 0.7)

	spots, err = NewAdvancedLogDetector[float32](img, all, img.Calibration(), 2*math.Sqrt2, 2*math.Sqrt2, 1, 0.8, true, false).Process()
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.InDelta(t, 16.2, spots[0].X(), 0.5)
}

func TestAdvancedLogDetectorRadiusZ(t *testing.T) {
	img := gaussianBlob(t, []int{24, 24, 40}, nil, []float64{11.6, 12.3, 19.4}, []float64{2, 2, 4}, 100)
	detect := func(radiusZ float64) *spot.Spot {
		spots, err := Detect[float32](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{
			Method:    MethodAdvancedLoG,
			Radius:    2 * math.Sqrt(3),
			RadiusZ:   radiusZ,
			Threshold: 1,
			Subpixel:  true,
		})
		require.NoError(t, err)
		require.Len(t, spots, 1)
		assert.InDelta(t, 19.4, spots[0].Z(), 0.5)
		return spots[0]
	}
	matched := detect(4 * math.Sqrt(3))
	isotropic := detect(2 * math.Sqrt(3))
	assert.Greater(t, matched.Quality(), 1.3*isotropic.Quality())
}

func TestDetectorSqueezedAxisKeepsZRadius(t *testing.T) {
	img, err := spot.NewArrayImage[float32]([]int{32, 3, 48}, nil)
	require.NoError(t, err)
	pos := make([]int, 3)
	spot.ForEach(img.Dims(), pos, func(pos []int) {
		if pos[1] != 1 {
			return
		}
		dx, dz := float64(pos[0])-15.3, float64(pos[2])-23.6
		img.Set(pos, float32(100*math.Exp(-dx*dx/8-dz*dz/32)))
	})
	iv := spot.NewInterval([]int{0, 1, 0}, []int{31, 1, 47})
	detect := func(method Method, radiusZ float64) *spot.Spot {
		spots, err := Detect[float32](img, iv, img.Calibration(), Settings{
			Method:    method,
			Radius:    2 * math.Sqrt2,
			RadiusZ:   radiusZ,
			Threshold: 0.5,
			Subpixel:  true,
		})
		require.NoError(t, err)
		require.Len(t, spots, 1)
		assert.InDelta(t, 15.3, spots[0].X(), 0.5)
		assert.Equal(t, 1.0, spots[0].Y())
		assert.InDelta(t, 23.6, spots[0].Z(), 0.5)
		return spots[0]
	}
	// Axis 1 of the squeezed image is Z, so RadiusZ must shape it.
	matched := detect(MethodAdvancedLoG, 4*math.Sqrt2)
	isotropic := detect(MethodAdvancedLoG, 2*math.Sqrt2)
	assert.Greater(t, matched.Quality(), 1.25*isotropic.Quality())

	matched = detect(MethodHessian, 4*math.Sqrt2)
	isotropic = detect(MethodHessian, 2*math.Sqrt2)
	assert.Greater(t, matched.Quality(), isotropic.Quality())
}

func TestAdvancedLogDetectorInputErrors(t *testing.T) {
	var inErr *spot.InputError

	_, err := NewAdvancedLogDetector[float32](nil, spot.FromDims([]int{4, 4}), spot.Calibration{1, 1}, 2, 2, 0, 0, true, false).Process()
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "AdvancedLogDetector: Image is null.", err.Error())

	img, err := spot.NewArrayImage[uint8]([]int{10, 10}, nil)
	require.NoError(t, err)
	_, err = NewAdvancedLogDetector[uint8](fourD{img}, spot.FromDims([]int{10, 10, 1, 1}), spot.Calibration{1, 1, 1, 1}, 2, 2, 0, 0, true, false).Process()
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "AdvancedLogDetector: Image must be 1D, 2D or 3D, got 4D.", err.Error())

	_, err = NewAdvancedLogDetector[uint8](img, spot.FromDims([]int{11, 10}), img.Calibration(), 2, 2, 0, 0, true, false).Process()
	require.ErrorAs(t, err, &inErr)

	_, err = NewAdvancedLogDetector[uint8](img, spot.FromDims([]int{10, 10}), spot.Calibration{1}, 2, 2, 0, 0, true, false).Process()
	require.ErrorAs(t, err, &inErr)
}

// fourD pretends to be a 4D image.
type fourD struct {
	*spot.ArrayImage[uint8]
}

func (fourD) NumDimensions() int { return 4 }
func (f fourD) Dimension(d int) int {
	if d < 2 {
		return f.ArrayImage.Dimension(d)
	}
	return 1
}

func TestHessianDetectorSingleBlob(t *testing.T) {
	img := gaussianBlob(t, []int{40, 36}, nil, []float64{18.7, 16.2}, []float64{2, 2}, 100)
	spots, err := Detect[float32](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{
		Method:    MethodHessian,
		Radius:    2 * math.Sqrt2,
		RadiusZ:   2 * math.Sqrt2,
		Threshold: 0.1,
		Normalize: true,
		Subpixel:  true,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.InDelta(t, 18.7, spots[0].X(), 0.5)
	assert.InDelta(t, 16.2, spots[0].Y(), 0.5)
	assert.InDelta(t, 1.0, spots[0].Quality(), 1e-9)
}

func TestDetectUnknownMethod(t *testing.T) {
	img, err := spot.NewArrayImage[uint16]([]int{8, 8}, nil)
	require.NoError(t, err)
	_, err = Detect[uint16](img, spot.FromDims(img.Dims()), img.Calibration(), Settings{Method: Method(42), Radius: 2})
	var inErr *spot.InputError
	require.ErrorAs(t, err, &inErr)
}

func TestMethodText(t *testing.T) {
	for _, m := range []Method{MethodLoG, MethodAdvancedLoG, MethodHessian} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back Method
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
	var m Method
	require.Error(t, m.UnmarshalText([]byte("dog")))
}
