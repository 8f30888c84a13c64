// Package soundscape computes Pleasantness (P) and Eventfulness (E) coordinates
// from per-scene survey measurements and rescales them onto a shared [-1, 1]
// axis so that independently measured datasets can be compared.
package soundscape

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a scene is missing, duplicated or carries
	// a measurement that is not a finite real number.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration is returned when the normalization divisor is not
	// a finite positive number.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MeasurementColumns is the canonical column order of a scene's measurements.
var MeasurementColumns = [8]string{"e", "v", "p", "ca", "u", "m", "a", "ch"}

// Measurements holds the eight raw survey measurements for one scene.
type Measurements struct {
	E  float64 `json:"e"`
	V  float64 `json:"v"`
	P  float64 `json:"p"`
	CA float64 `json:"ca"`
	U  float64 `json:"u"`
	M  float64 `json:"m"`
	A  float64 `json:"a"`
	CH float64 `json:"ch"`
}

// MeasurementsFromSlice builds Measurements from values in MeasurementColumns order.
func MeasurementsFromSlice(values []float64) (Measurements, error) {
	if len(values) != len(MeasurementColumns) {
		return Measurements{}, fmt.Errorf("%w: expected %d measurements, got %d",
			ErrInvalidInput, len(MeasurementColumns), len(values))
	}
	return Measurements{
		E: values[0], V: values[1], P: values[2], CA: values[3],
		U: values[4], M: values[5], A: values[6], CH: values[7],
	}, nil
}

// Array returns the measurements in MeasurementColumns order.
func (m Measurements) Array() [8]float64 {
	return [8]float64{m.E, m.V, m.P, m.CA, m.U, m.M, m.A, m.CH}
}

// Scene is one measured condition, identified by a string key.
type Scene struct {
	ID     string       `json:"id"`
	Values Measurements `json:"values"`
}

// SceneSet is an insertion-ordered collection of scenes with unique IDs.
// The order determines both output order and the default pairing of scenes.
type SceneSet struct {
	scenes []Scene
	index  map[string]int
}

// NewSceneSet returns a SceneSet holding the given scenes in order.
func NewSceneSet(scenes ...Scene) (*SceneSet, error) {
	s := &SceneSet{index: make(map[string]int, len(scenes))}
	for _, sc := range scenes {
		if err := s.Add(sc.ID, sc.Values); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a scene. Empty and duplicate IDs are rejected.
func (s *SceneSet) Add(id string, m Measurements) error {
	if id == "" {
		return fmt.Errorf("%w: empty scene id", ErrInvalidInput)
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[id]; ok {
		return fmt.Errorf("%w: duplicate scene id %q", ErrInvalidInput, id)
	}
	s.index[id] = len(s.scenes)
	s.scenes = append(s.scenes, Scene{ID: id, Values: m})
	return nil
}

// Len returns the number of scenes.
func (s *SceneSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.scenes)
}

// Scenes returns a copy of the scenes in insertion order.
func (s *SceneSet) Scenes() []Scene {
	if s == nil {
		return nil
	}
	out := make([]Scene, len(s.scenes))
	copy(out, s.scenes)
	return out
}

// IDs returns the scene IDs in insertion order.
func (s *SceneSet) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.scenes))
	for i, sc := range s.scenes {
		ids[i] = sc.ID
	}
	return ids
}

// Lookup returns the scene with the given ID.
func (s *SceneSet) Lookup(id string) (Scene, bool) {
	if s == nil {
		return Scene{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Scene{}, false
	}
	return s.scenes[i], true
}
