package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/digital-toolbox/internal/dataset"
	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/plotting"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	"github.com/banshee-data/digital-toolbox/internal/summary"
)

// process runs one job to a terminal status. Every failure is recorded on
// the job rather than returned.
func (r *Runner) process(ctx context.Context, id string) {
	start := r.opts.Clock.Now()
	if err := r.opts.Store.MarkRunning(ctx, id); err != nil {
		logf("job %s: mark running: %v", id, err)
		if errors.Is(err, db.ErrInvalidTransition) {
			// Already terminal; only the waiters need waking.
			r.finish(ctx, id)
			return
		}
		r.fail(context.Background(), id, fmt.Sprintf("start job: %v", err))
		return
	}

	job, err := r.opts.Store.GetJob(ctx, id)
	if err != nil {
		logf("job %s: load: %v", id, err)
		r.fail(context.Background(), id, fmt.Sprintf("load job: %v", err))
		return
	}

	out, err := r.run(ctx, job)
	r.opts.Metrics.Duration.Observe(r.opts.Clock.Since(start).Seconds())
	if err != nil {
		logf("job %s failed: %v", id, err)
		r.fail(ctx, id, err.Error())
		return
	}

	if err := r.opts.Store.MarkSucceeded(ctx, id, out); err != nil {
		logf("job %s: mark succeeded: %v", id, err)
		r.fail(ctx, id, err.Error())
		return
	}
	r.opts.Metrics.Completed.WithLabelValues(string(db.JobSucceeded)).Inc()
	r.opts.Metrics.ScenesClamped.Add(float64(out.ClampedCount))
	logf("job %s succeeded: %d scenes, %d clamped", id, out.SceneCount, out.ClampedCount)
	r.finish(ctx, id)
}

// run reads the uploaded table, writes its summary and, when the table
// carries the eight measurement columns, computes and renders coordinates.
func (r *Runner) run(ctx context.Context, job *db.Job) (db.Outcome, error) {
	var out db.Outcome

	f, err := r.opts.FS.Open(job.UploadPath)
	if err != nil {
		return out, fmt.Errorf("open upload: %w", err)
	}
	table, err := dataset.ReadTable(f)
	f.Close()
	if err != nil {
		return out, fmt.Errorf("read %s: %w", job.Filename, err)
	}

	doc := summary.NewDocument(job.Filename, table, r.opts.Clock.Now())

	if dataset.HasMeasurementColumns(table) {
		res, err := r.coordinates(table, job.FixedMax)
		if err != nil {
			return out, err
		}
		doc.Coordinates = res
		out.SceneCount = len(res.Points)
		out.ClampedCount = res.ClampedCount

		if err := r.opts.Store.InsertCoordinates(ctx, job.ID, res); err != nil {
			return out, err
		}
		if len(res.Points) > 0 {
			if out.PlotPath, out.ChartPath, err = r.render(job.ID, res); err != nil {
				return out, err
			}
		}
	}

	out.SummaryPath = filepath.Join(r.opts.ResultsDir, summaryName(job.UploadPath))
	if err := summary.WriteJSON(r.opts.FS, out.SummaryPath, doc); err != nil {
		return out, fmt.Errorf("write summary: %w", err)
	}
	return out, nil
}

func (r *Runner) coordinates(table *dataset.Table, fixedMax float64) (*soundscape.Result, error) {
	scenes, err := dataset.ScenesFromTable(table, r.opts.IDColumn)
	if err != nil {
		return nil, err
	}
	engine, err := soundscape.NewEngine(fixedMax)
	if err != nil {
		return nil, err
	}
	return engine.Run(scenes)
}

// render writes <id>.png and <id>.html under the results directory.
func (r *Runner) render(id string, res *soundscape.Result) (pngPath, htmlPath string, err error) {
	opts := plotting.ScatterOptions{
		Title:       r.opts.PlotTitle,
		Connections: r.opts.Policy,
	}

	pngPath = filepath.Join(r.opts.ResultsDir, id+".png")
	if err := r.writeWith(pngPath, func(w io.Writer) error { return plotting.RenderScatterPNG(w, res, opts) }); err != nil {
		return "", "", fmt.Errorf("render png: %w", err)
	}
	htmlPath = filepath.Join(r.opts.ResultsDir, id+".html")
	if err := r.writeWith(htmlPath, func(w io.Writer) error { return plotting.RenderScatterHTML(w, res, opts) }); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	return pngPath, htmlPath, nil
}

func (r *Runner) writeWith(path string, render func(io.Writer) error) error {
	w, err := r.opts.FS.Create(path)
	if err != nil {
		return err
	}
	if err := render(w); err != nil {
		w.Close()
		r.opts.FS.Remove(path)
		return err
	}
	return w.Close()
}

// summaryName maps uploads/<id>_<name>.csv to <id>_<name>.json.
func summaryName(uploadPath string) string {
	base := filepath.Base(uploadPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}
