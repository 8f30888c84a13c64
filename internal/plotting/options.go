// Package plotting renders normalized (P, E) scene points as a static PNG
// scatter and as an interactive HTML chart.
package plotting

import (
	"image/color"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// PointStyle overrides how one scene is drawn.
type PointStyle struct {
	Label string
	Color color.Color
}

// ScatterOptions controls rendering. Zero values fall back to defaults.
type ScatterOptions struct {
	Title string
	// Width and Height are in inches for PNG output and pixels/100 for HTML.
	Width  float64
	Height float64
	// Styles is keyed by scene ID.
	Styles map[string]PointStyle
	// Connections selects which scenes are joined; nil means consecutive pairs.
	Connections soundscape.ConnectionPolicy
}

const (
	defaultTitle = "Soundscape circumplex"
	defaultSize  = 8.0
)

func (o ScatterOptions) title() string {
	if o.Title == "" {
		return defaultTitle
	}
	return o.Title
}

func (o ScatterOptions) size() (w, h float64) {
	w, h = o.Width, o.Height
	if w <= 0 {
		w = defaultSize
	}
	if h <= 0 {
		h = defaultSize
	}
	return w, h
}

// label returns the display label for a scene.
func (o ScatterOptions) label(sceneID string) string {
	if s, ok := o.Styles[sceneID]; ok && s.Label != "" {
		return s.Label
	}
	return sceneID
}

// colors returns one colour per point, honouring style overrides.
func (o ScatterOptions) colors(points []soundscape.ScenePoint) []color.Color {
	palette := generateColors(len(points))
	for i, p := range points {
		if s, ok := o.Styles[p.SceneID]; ok && s.Color != nil {
			palette[i] = s.Color
		}
	}
	return palette
}

// generateColors creates a palette of n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

func colorHex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	const hex = "0123456789abcdef"
	buf := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint32{r >> 8, g >> 8, b >> 8} {
		buf[1+2*i] = hex[v>>4]
		buf[2+2*i] = hex[v&0x0f]
	}
	return string(buf)
}
