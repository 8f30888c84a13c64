package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// ErrNoPoints is returned when there is nothing to draw.
var ErrNoPoints = errors.New("no points to plot")

// axisPad keeps points sitting exactly on ±1 inside the canvas.
const axisPad = 1.1

// NewScatterPlot builds the circumplex plot: fixed [-1, 1] axes, one glyph
// and label per scene, and a line for every resolved connection.
func NewScatterPlot(res *soundscape.Result, o ScatterOptions) (*plot.Plot, error) {
	if res == nil || len(res.Points) == 0 {
		return nil, ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = o.title()
	p.X.Label.Text = "Pleasantness"
	p.Y.Label.Text = "Eventfulness"
	p.X.Min, p.X.Max = -axisPad, axisPad
	p.Y.Min, p.Y.Max = -axisPad, axisPad
	p.Add(plotter.NewGrid())

	for _, axis := range []plotter.XYs{
		{{X: -1, Y: 0}, {X: 1, Y: 0}},
		{{X: 0, Y: -1}, {X: 0, Y: 1}},
	} {
		l, err := plotter.NewLine(axis)
		if err != nil {
			return nil, err
		}
		l.Color = color.Gray{Y: 128}
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(l)
	}

	for _, seg := range soundscape.Segments(res.Points, o.Connections) {
		l, err := plotter.NewLine(plotter.XYs{
			{X: seg.Start.P, Y: seg.Start.E},
			{X: seg.End.P, Y: seg.End.E},
		})
		if err != nil {
			return nil, fmt.Errorf("connection %s-%s: %w", seg.FromID, seg.ToID, err)
		}
		l.Color = color.Gray{Y: 90}
		l.Width = vg.Points(1)
		p.Add(l)
	}

	colors := o.colors(res.Points)
	xys := make(plotter.XYs, len(res.Points))
	labels := make([]string, len(res.Points))
	for i, pt := range res.Points {
		xys[i] = plotter.XY{X: pt.Normalized.P, Y: pt.Normalized.E}
		labels[i] = o.label(pt.SceneID)

		s, err := plotter.NewScatter(plotter.XYs{xys[i]})
		if err != nil {
			return nil, fmt.Errorf("scene %q: %w", pt.SceneID, err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(labels[i], s)
	}

	lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range lbls.TextStyle {
		lbls.TextStyle[i].XAlign = draw.XLeft
	}
	lbls.Offset = vg.Point{X: vg.Points(5), Y: vg.Points(3)}
	p.Add(lbls)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// RenderScatterPNG writes the circumplex plot to w as PNG.
func RenderScatterPNG(w io.Writer, res *soundscape.Result, o ScatterOptions) error {
	p, err := NewScatterPlot(res, o)
	if err != nil {
		return err
	}
	width, height := o.size()
	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
