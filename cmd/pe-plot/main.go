// Command pe-plot computes pleasantness/eventfulness coordinates for a CSV
// of scenes and writes the scatter plot and a JSON summary next to it.
//
//	pe-plot [flags] scenes.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/config"
	"github.com/banshee-data/digital-toolbox/internal/dataset"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/plotting"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	"github.com/banshee-data/digital-toolbox/internal/summary"
)

type options struct {
	input    string
	outDir   string
	fixedMax float64
	idColumn string
	title    string
	html     bool
	width    float64
	height   float64
}

// outputs lists the files written for one input.
type outputs struct {
	PNG  string
	JSON string
	HTML string
}

func main() {
	var o options
	flag.StringVar(&o.outDir, "out", "", "Output directory (defaults to the input's directory)")
	flag.Float64Var(&o.fixedMax, "fixed-max", soundscape.DefaultFixedMax, "Normalization constant")
	flag.StringVar(&o.idColumn, "id-column", "", "Scene ID column (auto-detected when empty)")
	flag.StringVar(&o.title, "title", config.DefaultPlotTitle, "Plot title")
	flag.BoolVar(&o.html, "html", false, "Also write an interactive HTML chart")
	flag.Float64Var(&o.width, "width", 0, "Plot width in inches (0 for default)")
	flag.Float64Var(&o.height, "height", 0, "Plot height in inches (0 for default)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pe-plot [flags] scenes.csv\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	o.input = flag.Arg(0)

	out, err := run(fsutil.OSFileSystem{}, o)
	if err != nil {
		log.Fatalf("pe-plot: %v", err)
	}
	log.Printf("wrote %s", out.PNG)
	log.Printf("wrote %s", out.JSON)
	if out.HTML != "" {
		log.Printf("wrote %s", out.HTML)
	}
}

func run(fsys fsutil.FileSystem, o options) (outputs, error) {
	var out outputs

	f, err := fsys.Open(o.input)
	if err != nil {
		return out, err
	}
	table, err := dataset.ReadTable(f)
	f.Close()
	if err != nil {
		return out, fmt.Errorf("read %s: %w", o.input, err)
	}

	scenes, err := dataset.ScenesFromTable(table, o.idColumn)
	if err != nil {
		return out, fmt.Errorf("%s: %w", o.input, err)
	}
	engine, err := soundscape.NewEngine(o.fixedMax)
	if err != nil {
		return out, err
	}
	res, err := engine.Run(scenes)
	if err != nil {
		return out, err
	}
	if res.ClampedCount > 0 {
		log.Printf("%d scene(s) fell outside +/-%g and were clamped", res.ClampedCount, o.fixedMax)
	}

	dir := o.outDir
	if dir == "" {
		dir = filepath.Dir(o.input)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return out, err
	}
	base := filepath.Join(dir, strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input)))
	plotOpts := plotting.ScatterOptions{Title: o.title, Width: o.width, Height: o.height}

	out.PNG = base + ".png"
	if err := writeWith(fsys, out.PNG, func(w io.Writer) error {
		return plotting.RenderScatterPNG(w, res, plotOpts)
	}); err != nil {
		return out, err
	}
	if o.html {
		out.HTML = base + ".html"
		if err := writeWith(fsys, out.HTML, func(w io.Writer) error {
			return plotting.RenderScatterHTML(w, res, plotOpts)
		}); err != nil {
			return out, err
		}
	}

	doc := summary.NewDocument(filepath.Base(o.input), table, time.Now())
	doc.Coordinates = res
	out.JSON = base + ".json"
	if err := summary.WriteJSON(fsys, out.JSON, doc); err != nil {
		return out, err
	}
	return out, nil
}

func writeWith(fsys fsutil.FileSystem, path string, render func(io.Writer) error) error {
	w, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := render(w); err != nil {
		w.Close()
		fsys.Remove(path)
		return fmt.Errorf("render %s: %w", path, err)
	}
	return w.Close()
}
