package plotting

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// RenderScatterHTML writes an interactive go-echarts page showing the same
// points and connections as the PNG plot.
func RenderScatterHTML(w io.Writer, res *soundscape.Result, o ScatterOptions) error {
	if res == nil || len(res.Points) == 0 {
		return ErrNoPoints
	}
	width, height := o.size()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.title(),
			Width:     fmt.Sprintf("%dpx", int(width*100)),
			Height:    fmt.Sprintf("%dpx", int(height*100)),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.title(),
			Subtitle: fmt.Sprintf("scenes=%d fixed_max=%g clamped=%d", len(res.Points), res.FixedMax, res.ClampedCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: -1, Max: 1, Name: "Pleasantness", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -1, Max: 1, Name: "Eventfulness", NameLocation: "middle", NameGap: 30}),
	)

	colors := o.colors(res.Points)
	for i, pt := range res.Points {
		label := o.label(pt.SceneID)
		scatter.AddSeries(label, []opts.ScatterData{{
			Name:  pt.SceneID,
			Value: []interface{}{pt.Normalized.P, pt.Normalized.E},
		}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorHex(colors[i])}),
		)
	}

	segs := soundscape.Segments(res.Points, o.Connections)
	if len(segs) > 0 {
		line := charts.NewLine()
		for _, seg := range segs {
			line.AddSeries(seg.FromID+" - "+seg.ToID, []opts.LineData{
				{Value: []interface{}{seg.Start.P, seg.Start.E}},
				{Value: []interface{}{seg.End.P, seg.End.E}},
			}, charts.WithLineStyleOpts(opts.LineStyle{Color: "#5a5a5a", Width: 1}))
		}
		scatter.Overlap(line)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
