package detection

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestHessianAtQuadratic(t *testing.T) {
	// f = 3x^2 + 2xy - y^2 is recovered exactly by central differences.
	img, err := spot.NewArrayImage[float64]([]int{9, 9}, nil)
	require.NoError(t, err)
	pos := make([]int, 2)
	spot.ForEach(img.Dims(), pos, func(pos []int) {
		x, y := float64(pos[0]), float64(pos[1])
		img.Set(pos, 3*x*x+2*x*y-y*y)
	})
	H := HessianAt(img, []int{4, 4}, []float64{1, 1}, nil)
	assert.InDeltaSlice(t, []float64{6, 2, -2}, H, 1e-9)

	// Physical units divide by the pixel sizes.
	H = HessianAt(img, []int{4, 4}, []float64{2, 0.5}, H)
	assert.InDeltaSlice(t, []float64{6. / 4, 2. / 1, -2. / 0.25}, H, 1e-9)
}

func TestHessianAt3D(t *testing.T) {
	img, err := spot.NewArrayImage[float64]([]int{7, 7, 7}, nil)
	require.NoError(t, err)
	pos := make([]int, 3)
	spot.ForEach(img.Dims(), pos, func(pos []int) {
		x, y, z := float64(pos[0]), float64(pos[1]), float64(pos[2])
		img.Set(pos, x*x-2*y*y+0.5*z*z+x*y-3*y*z+4*x*z)
	})
	H := HessianAt(img, []int{3, 3, 3}, []float64{1, 1, 1}, nil)
	// [a00 a01 a02 a11 a12 a22]
	assert.InDeltaSlice(t, []float64{2, 1, 4, -4, -3, 1}, H, 1e-9)
}

func TestEigenvalues2x2(t *testing.T) {
	evs := HessianEigenvalues([]float64{2, 1, 2})
	assert.InDeltaSlice(t, []float64{3, 1}, evs, 1e-12)
	evs = HessianEigenvalues([]float64{-4})
	assert.Equal(t, []float64{-4}, evs)
}

func TestEigenvaluesSymmetric33(t *testing.T) {
	evs := HessianEigenvalues([]float64{1, 0, 0, 2, 0, 3})
	assert.InDeltaSlice(t, []float64{3, 2, 1}, evs, 1e-12)

	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 200; trial++ {
		H := make([]float64, 6)
		for i := range H {
			H[i] = rng.Float64()*20 - 10
		}
		got := HessianEigenvalues(H)
		sort.Float64s(got)

		sym := mat.NewSymDense(3, []float64{
			H[0], H[1], H[2],
			H[1], H[3], H[4],
			H[2], H[4], H[5],
		})
		var es mat.EigenSym
		require.True(t, es.Factorize(sym, false))
		expected := es.Values(nil)
		assert.InDeltaSlice(t, expected, got, 1e-6, "matrix %v", H)
	}
}

func TestBlobStrength(t *testing.T) {
	assert.InDelta(t, 1.0, BlobStrength([]float64{1, 1, 1}), 1e-12)
	assert.InDelta(t, 0.01, BlobStrength([]float64{1, 1, 0.01}), 1e-12)
	assert.InDelta(t, 0.01, BlobStrength([]float64{-1, 1, -0.01}), 1e-12)
	assert.InDelta(t, 0.5, BlobStrength([]float64{-2, -4}), 1e-12)
	assert.Equal(t, 0.0, BlobStrength([]float64{0, 0, 0}))

	evs := []float64{-3, 1, 2}
	BlobStrength(evs)
	assert.Equal(t, []float64{-3, 1, 2}, evs)
}
