package soundscape

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScenes(t *testing.T) *SceneSet {
	t.Helper()
	set, err := NewSceneSet(
		Scene{ID: "park", Values: Measurements{E: 1, P: 2}},
		Scene{ID: "street", Values: Measurements{E: 12, P: -1, A: 3}},
		Scene{ID: "square", Values: Measurements{V: 2, CA: 1}},
	)
	require.NoError(t, err)
	return set
}

func TestEngineRun(t *testing.T) {
	eng, err := NewEngine(DefaultFixedMax)
	require.NoError(t, err)

	res, err := eng.Run(newTestScenes(t))
	require.NoError(t, err)

	require.Len(t, res.Points, 3)
	assert.Equal(t, []string{"park", "street", "square"},
		[]string{res.Points[0].SceneID, res.Points[1].SceneID, res.Points[2].SceneID})

	park, ok := res.Point("park")
	require.True(t, ok)
	assert.Equal(t, Coordinate{P: 2, E: 1}, park.Raw)
	assert.InDelta(t, 2.0/7, park.Normalized.P, 1e-12)
	assert.InDelta(t, 1.0/7, park.Normalized.E, 1e-12)
	assert.False(t, park.Clamped)

	street, ok := res.Point("street")
	require.True(t, ok)
	assert.Equal(t, -4.0, street.Raw.P)
	assert.Equal(t, 12.0, street.Raw.E)
	assert.Equal(t, 1.0, street.Normalized.E)
	assert.True(t, street.Clamped)
	assert.Equal(t, 1, res.ClampedCount)

	for i, p := range res.Points {
		assert.Equal(t, res.RawP[i], p.Raw.P)
		assert.Equal(t, res.RawE[i], p.Raw.E)
		assert.Equal(t, res.NormP[i], p.Normalized.P)
		assert.Equal(t, res.NormE[i], p.Normalized.E)
	}

	_, ok = res.Point("missing")
	assert.False(t, ok)
}

func TestEngineRun_ConfigurationCheckedFirst(t *testing.T) {
	_, err := NewEngine(0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	bad, err := NewSceneSet(Scene{ID: "x", Values: Measurements{E: math.NaN()}})
	require.NoError(t, err)

	eng := &Engine{FixedMax: -1}
	_, err = eng.Run(bad)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	assert.False(t, errors.Is(err, ErrInvalidInput))
}

func TestEngineRun_InvalidScene(t *testing.T) {
	bad, err := NewSceneSet(Scene{ID: "x", Values: Measurements{CH: math.Inf(-1)}})
	require.NoError(t, err)

	eng, err := NewEngine(7)
	require.NoError(t, err)
	_, err = eng.Run(bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngineRun_SharedScaleAcrossDatasets(t *testing.T) {
	a, err := NewSceneSet(Scene{ID: "a", Values: Measurements{P: 3.5}})
	require.NoError(t, err)
	b, err := NewSceneSet(
		Scene{ID: "b1", Values: Measurements{P: 3.5}},
		Scene{ID: "b2", Values: Measurements{P: 0.1}},
	)
	require.NoError(t, err)

	eng := &Engine{FixedMax: 7}
	ra, err := eng.Run(a)
	require.NoError(t, err)
	rb, err := eng.Run(b)
	require.NoError(t, err)

	assert.Equal(t, ra.NormP[0], rb.NormP[0])
	assert.Equal(t, 0.5, ra.NormP[0])
}
