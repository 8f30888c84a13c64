package soundscape

import "fmt"

// ScenePoint ties one scene to its raw and normalized coordinates.
type ScenePoint struct {
	SceneID    string     `json:"scene_id"`
	Raw        Coordinate `json:"raw"`
	Normalized Coordinate `json:"normalized"`
	// Clamped is true when either normalized component was clamped.
	Clamped bool `json:"clamped"`
}

// Result holds the output of one engine run. All slices are in scene order.
type Result struct {
	FixedMax     float64      `json:"fixed_max"`
	RawP         []float64    `json:"raw_p"`
	RawE         []float64    `json:"raw_e"`
	NormP        []float64    `json:"norm_p"`
	NormE        []float64    `json:"norm_e"`
	Points       []ScenePoint `json:"points"`
	ClampedCount int          `json:"clamped_count"`
}

// Point returns the computed point for a scene.
func (r *Result) Point(sceneID string) (ScenePoint, bool) {
	for _, p := range r.Points {
		if p.SceneID == sceneID {
			return p, true
		}
	}
	return ScenePoint{}, false
}

// Engine runs the coordinate and normalization pipeline with a fixed divisor.
type Engine struct {
	FixedMax float64
}

// NewEngine returns an Engine, rejecting a divisor that is not > 0.
func NewEngine(fixedMax float64) (*Engine, error) {
	if err := ValidateFixedMax(fixedMax); err != nil {
		return nil, err
	}
	return &Engine{FixedMax: fixedMax}, nil
}

// Run computes raw coordinates for every scene and normalizes them.
// The divisor is validated before any scene is touched.
func (e *Engine) Run(scenes *SceneSet) (*Result, error) {
	if err := ValidateFixedMax(e.FixedMax); err != nil {
		return nil, err
	}

	ps, es, err := ComputePE(scenes)
	if err != nil {
		return nil, err
	}

	np, err := NormalizeFixedMaxReport(ps, e.FixedMax)
	if err != nil {
		return nil, fmt.Errorf("normalize P: %w", err)
	}
	ne, err := NormalizeFixedMaxReport(es, e.FixedMax)
	if err != nil {
		return nil, fmt.Errorf("normalize E: %w", err)
	}

	res := &Result{
		FixedMax: e.FixedMax,
		RawP:     ps,
		RawE:     es,
		NormP:    np.Values,
		NormE:    ne.Values,
		Points:   make([]ScenePoint, len(ps)),
	}
	for i, id := range scenes.IDs() {
		clamped := np.Clamped[i] || ne.Clamped[i]
		res.Points[i] = ScenePoint{
			SceneID:    id,
			Raw:        Coordinate{P: ps[i], E: es[i]},
			Normalized: Coordinate{P: np.Values[i], E: ne.Values[i]},
			Clamped:    clamped,
		}
		if clamped {
			res.ClampedCount++
		}
	}
	return res, nil
}
