package soundscape

import (
	"fmt"
	"math"
)

// diagonal is cos(45°), the weight of the two diagonal axes of the circumplex.
var diagonal = math.Cos(math.Pi / 4)

// Coordinate is a (P, E) pair.
type Coordinate struct {
	P float64 `json:"p"`
	E float64 `json:"e"`
}

// CalculateCoordinates projects one scene's measurements onto the
// Pleasantness and Eventfulness axes:
//
//	P = (p - a) + k*(ca - ch) + k*(v - m)
//	E = (e - u) + k*(ch - ca) + k*(v - m)
//
// where k = cos(45°).
func CalculateCoordinates(m Measurements) (Coordinate, error) {
	for i, v := range m.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Coordinate{}, fmt.Errorf("%w: measurement %q is not finite (%v)",
				ErrInvalidInput, MeasurementColumns[i], v)
		}
	}

	p := (m.P - m.A) + diagonal*(m.CA-m.CH) + diagonal*(m.V-m.M)
	e := (m.E - m.U) + diagonal*(m.CH-m.CA) + diagonal*(m.V-m.M)
	return Coordinate{P: p, E: e}, nil
}

// ComputePE computes raw coordinates for every scene and returns them as two
// parallel sequences in the set's insertion order. The first invalid scene
// fails the whole batch.
func ComputePE(scenes *SceneSet) (ps, es []float64, err error) {
	n := scenes.Len()
	ps = make([]float64, 0, n)
	es = make([]float64, 0, n)
	for _, sc := range scenes.Scenes() {
		c, err := CalculateCoordinates(sc.Values)
		if err != nil {
			return nil, nil, fmt.Errorf("scene %q: %w", sc.ID, err)
		}
		ps = append(ps, c.P)
		es = append(es, c.E)
	}
	return ps, es, nil
}
