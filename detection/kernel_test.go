package detection

import (
	"math"
	"testing"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoGKernelIsotropicMatchesAnisotropic(t *testing.T) {
	cases := []struct {
		radius float64
		nDims  int
		cal    []float64
	}{
		{2.5, 1, []float64{1}},
		{2.5, 2, []float64{1, 1}},
		{3.0, 2, []float64{0.2, 0.2}},
		{4.0, 3, []float64{0.5, 0.5, 1.5}},
	}
	for _, c := range cases {
		iso, err := CreateLoGKernel(c.radius, c.nDims, c.cal)
		require.NoError(t, err)
		aniso, err := CreateLoGKernelAnisotropic(c.radius, c.radius, c.nDims, c.cal)
		require.NoError(t, err)
		assert.Equal(t, aniso.Dims, iso.Dims)
		require.Len(t, iso.Data, len(aniso.Data))
		for i := range iso.Data {
			if math.Float64bits(iso.Data[i]) != math.Float64bits(aniso.Data[i]) {
				t.Fatalf("kernel value %d differs: %v, expected: %v", i, iso.Data[i], aniso.Data[i])
			}
		}
	}
}

func TestLoGKernelShape(t *testing.T) {
	// sigma = 2.5 / sqrt(2) px, half size = int(3*1.77+0.5)+1 = 6.
	k, err := CreateLoGKernel(2.5, 2, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{15, 15}, k.Dims)
	assert.Equal(t, 7, k.Center(0))

	// Small sigmas are clamped to a half size of 2.
	k, err = CreateLoGKernel(0.1, 2, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7}, k.Dims)

	// Z gets its own extent.
	k, err = CreateLoGKernelAnisotropic(2, 6, 3, []float64{0.5, 0.5, 1})
	require.NoError(t, err)
	sigmaXY := 2 / math.Sqrt(3) / 0.5
	sigmaZ := 6 / math.Sqrt(3) / 1
	assert.Equal(t, 3+2*(int(3*sigmaXY+0.5)+1), k.Dims[0])
	assert.Equal(t, 3+2*(int(3*sigmaZ+0.5)+1), k.Dims[2])

	// Bright blobs give a positive response: the centre is the maximum.
	k, err = CreateLoGKernel(3, 2, []float64{1, 1})
	require.NoError(t, err)
	centre := k.Data[k.Center(1)*k.Dims[0]+k.Center(0)]
	for _, v := range k.Data {
		assert.LessOrEqual(t, v, centre)
	}
	assert.Greater(t, centre, 0.0)
}

func TestLoGKernelSumsToZero(t *testing.T) {
	for _, c := range []struct {
		radius float64
		nDims  int
		cal    []float64
	}{
		{3, 2, []float64{1, 1}},
		{5, 2, []float64{1, 1}},
		{1.5, 2, []float64{0.5, 0.5}},
		{4, 3, []float64{1, 1, 1}},
		{3, 1, []float64{1}},
	} {
		k, err := CreateLoGKernel(c.radius, c.nDims, c.cal)
		require.NoError(t, err)
		abs := 0.0
		for _, v := range k.Data {
			abs += math.Abs(v)
		}
		assert.Less(t, math.Abs(k.Sum())/abs, 0.05, "radius %v, %dD", c.radius, c.nDims)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	k, err := CreateGaussianKernel(2, 2, 2, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k.Sum(), 1e-12)
	for i := 0; i < k.Dims[0]; i++ {
		assert.InDelta(t, k.Data[i], k.Data[len(k.Data)-1-i], 1e-15)
	}
}

func TestKernelRejectsBadInput(t *testing.T) {
	var inErr *spot.InputError
	_, err := CreateLoGKernel(2, 4, []float64{1, 1, 1, 1})
	require.ErrorAs(t, err, &inErr)
	_, err = CreateLoGKernel(-1, 2, []float64{1, 1})
	require.ErrorAs(t, err, &inErr)
	_, err = CreateLoGKernel(2, 3, []float64{1, 1})
	require.ErrorAs(t, err, &inErr)
	_, err = CreateLoGKernel(2, 2, []float64{1, 0})
	require.ErrorAs(t, err, &inErr)
}

func TestAxisSigmas(t *testing.T) {
	assert.InDeltaSlice(t, []float64{2 / math.Sqrt(3), 2 / math.Sqrt(3), 4 / math.Sqrt(3)}, KernelSigmas(2, 4, 3), 1e-12)
	assert.InDeltaSlice(t, []float64{2 / math.Sqrt2, 4 / math.Sqrt2}, AxisSigmas(2, 4, []int{0, 2}), 1e-12)
	assert.Equal(t, []float64{2}, AxisSigmas(2, 4, []int{1}))

	// sigma 1.41 px gives half size 5, sigma 2.83 px gives 9.
	k, err := logKernel(2, 4, []int{0, 2}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{13, 21}, k.Dims)
	k, err = logKernel(2, 4, []int{0, 1}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{13, 13}, k.Dims)
	k, err = gaussianKernel(2, 4, []int{2}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []int{3 + 2*13}, k.Dims)
}
