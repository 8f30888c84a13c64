package soundscape

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFixedMax_ConcreteScenarios(t *testing.T) {
	got, err := NormalizeFixedMax([]float64{2.0, 1.0, 10.0, -10.0}, DefaultFixedMax)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.InDelta(t, 0.2857, got[0], 1e-4)
	assert.InDelta(t, 0.1429, got[1], 1e-4)
	assert.Equal(t, 1.0, got[2])
	assert.Equal(t, -1.0, got[3])
}

func TestNormalizeFixedMax_Bounds(t *testing.T) {
	for _, fm := range []float64{0.5, 1, 7, 123.25} {
		got, err := NormalizeFixedMax([]float64{fm, -fm}, fm)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got[0], "fixed_max=%v", fm)
		assert.Equal(t, -1.0, got[1], "fixed_max=%v", fm)
	}
}

func TestNormalizeFixedMax_DoesNotMutateInput(t *testing.T) {
	in := []float64{14, -3.5, 0}
	orig := append([]float64(nil), in...)

	out, err := NormalizeFixedMax(in, 7)
	require.NoError(t, err)
	assert.Equal(t, orig, in)
	assert.Equal(t, []float64{1, -0.5, 0}, out)

	out[0] = 42
	assert.Equal(t, 14.0, in[0])
}

func TestNormalizeFixedMax_InvalidConfiguration(t *testing.T) {
	for _, fm := range []float64{0, -1, -7, math.NaN(), math.Inf(1)} {
		_, err := NormalizeFixedMax([]float64{1}, fm)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "fixed_max=%v", fm)
	}
	// rejected even when there is nothing to normalize
	_, err := NormalizeFixedMax(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestNormalizeFixedMax_RejectsNaN(t *testing.T) {
	_, err := NormalizeFixedMax([]float64{1, math.NaN()}, 7)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizeFixedMaxReport_FlagsClampedElements(t *testing.T) {
	rep, err := NormalizeFixedMaxReport([]float64{3, 7, 7.5, -20, math.Inf(1)}, 7)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, true, true, true}, rep.Clamped)
	assert.Equal(t, 3, rep.ClampedCount)
	assert.Equal(t, []float64{3.0 / 7, 1, 1, -1, 1}, rep.Values)
}

func TestNormalize_Scalar(t *testing.T) {
	v, clamped, err := Normalize(3.5, 7)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 0.5, v)

	v, clamped, err = Normalize(-70, 7)
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, -1.0, v)
}
