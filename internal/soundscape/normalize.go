package soundscape

import (
	"fmt"
	"math"
)

// DefaultFixedMax is the divisor used when the caller does not supply one.
const DefaultFixedMax = 7.0

// ValidateFixedMax reports whether fixedMax can be used as a divisor.
func ValidateFixedMax(fixedMax float64) error {
	if math.IsNaN(fixedMax) || math.IsInf(fixedMax, 0) || fixedMax <= 0 {
		return fmt.Errorf("%w: fixed_max must be a finite value > 0, got %v", ErrInvalidConfiguration, fixedMax)
	}
	return nil
}

// Normalize rescales x by fixedMax and clamps the result to [-1, 1]. The
// second return value is true when clamping changed the result.
func Normalize(x, fixedMax float64) (float64, bool, error) {
	if err := ValidateFixedMax(fixedMax); err != nil {
		return 0, false, err
	}
	if math.IsNaN(x) {
		return 0, false, fmt.Errorf("%w: cannot normalize NaN", ErrInvalidInput)
	}
	v := x / fixedMax
	switch {
	case v > 1:
		return 1, true, nil
	case v < -1:
		return -1, true, nil
	}
	return v, false, nil
}

// Normalization is the result of a fixed-max rescale with per-element clamp flags.
type Normalization struct {
	Values       []float64 `json:"values"`
	Clamped      []bool    `json:"clamped"`
	ClampedCount int       `json:"clamped_count"`
}

// NormalizeFixedMax returns a new slice where every element is
// clamp(x/fixedMax, -1, 1). The input is not modified.
func NormalizeFixedMax(values []float64, fixedMax float64) ([]float64, error) {
	n, err := NormalizeFixedMaxReport(values, fixedMax)
	if err != nil {
		return nil, err
	}
	return n.Values, nil
}

// NormalizeFixedMaxReport is NormalizeFixedMax plus a record of which elements
// fell outside [-fixedMax, fixedMax] and were clamped.
func NormalizeFixedMaxReport(values []float64, fixedMax float64) (Normalization, error) {
	if err := ValidateFixedMax(fixedMax); err != nil {
		return Normalization{}, err
	}
	out := Normalization{
		Values:  make([]float64, len(values)),
		Clamped: make([]bool, len(values)),
	}
	for i, x := range values {
		v, clamped, err := Normalize(x, fixedMax)
		if err != nil {
			return Normalization{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Values[i] = v
		out.Clamped[i] = clamped
		if clamped {
			out.ClampedCount++
		}
	}
	return out, nil
}
