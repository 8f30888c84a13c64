// Package jobs runs uploaded survey tables through the summary, coordinate
// and rendering pipeline on a fixed pool of workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/monitoring"
	"github.com/banshee-data/digital-toolbox/internal/security"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	"github.com/banshee-data/digital-toolbox/internal/timeutil"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("job runner is stopped")
)

var logf = monitoring.Prefixed("jobs")

// interruptedError is recorded on jobs a previous process left unfinished.
const interruptedError = "interrupted before completion: the server was restarted"

// Upload is a file handed to the runner for processing.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Options configures a Runner. Store and FS are required.
type Options struct {
	Store *db.JobStore
	FS    fsutil.FileSystem
	Clock timeutil.Clock

	UploadDir  string
	ResultsDir string

	FixedMax  float64
	Policy    soundscape.ConnectionPolicy
	IDColumn  string
	PlotTitle string

	Workers   int
	QueueSize int

	Metrics *Metrics

	// OnComplete, when set, is called with the final job after every run.
	OnComplete func(*db.Job)
}

// Runner accepts uploads, persists them as jobs and processes them on a
// fixed pool of workers fed by a buffered queue.
type Runner struct {
	opts  Options
	queue chan string
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	waiters map[string]chan struct{}
}

// NewRunner validates opts and fills defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Store == nil || opts.FS == nil {
		return nil, errors.New("jobs: store and filesystem are required")
	}
	if err := soundscape.ValidateFixedMax(opts.FixedMax); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Policy == nil {
		opts.Policy = soundscape.ConsecutivePairs{}
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = "results"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	for _, dir := range []string{opts.UploadDir, opts.ResultsDir} {
		if err := opts.FS.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	n, err := opts.Store.FailUnfinished(context.Background(), interruptedError)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		logf("marked %d unfinished job(s) from an earlier run as failed", n)
	}
	return &Runner{
		opts:    opts,
		queue:   make(chan string, opts.QueueSize),
		waiters: make(map[string]chan struct{}),
	}, nil
}

// Metrics returns the collectors the runner reports to.
func (r *Runner) Metrics() *Metrics {
	return r.opts.Metrics
}

// Store returns the job store.
func (r *Runner) Store() *db.JobStore {
	return r.opts.Store
}

// FS returns the filesystem job artefacts live on.
func (r *Runner) FS() fsutil.FileSystem {
	return r.opts.FS
}

// Start launches the workers. Calling it twice is a no-op. Workers run until
// Stop drains the queue; cancelling ctx does not abandon queued jobs.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	logf("started %d workers (queue %d)", r.opts.Workers, r.opts.QueueSize)
}

// Stop refuses new uploads, lets the workers drain the queue, and waits for
// them to exit. Jobs still queued when the runner was never started are
// marked failed.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		for id := range r.queue {
			r.opts.Metrics.QueueDepth.Dec()
			r.fail(context.Background(), id, "runner stopped before the job started")
		}
	}
	r.wg.Wait()
	logf("stopped")
}

func (r *Runner) worker(ctx context.Context, n int) {
	defer r.wg.Done()
	for id := range r.queue {
		r.opts.Metrics.QueueDepth.Dec()
		r.process(ctx, id)
	}
	logf("worker %d exiting", n)
}

// Submit saves the upload as uploads/<job_id>_<filename>, records a queued
// job, and enqueues it. When the queue is full the job is recorded as failed
// and ErrQueueFull is returned along with it.
func (r *Runner) Submit(ctx context.Context, up Upload) (*db.Job, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}

	id := db.NewJobID()
	name := security.SanitizeFilename(up.Filename)
	uploadPath := filepath.Join(r.opts.UploadDir, id+"_"+name)
	if err := r.saveUpload(uploadPath, up.Body); err != nil {
		return nil, err
	}

	job := &db.Job{
		ID:         id,
		Filename:   name,
		UploadPath: uploadPath,
		FixedMax:   r.opts.FixedMax,
	}
	if err := r.opts.Store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	r.opts.Metrics.Submitted.Inc()

	if err := r.enqueue(id); err != nil {
		r.fail(ctx, id, err.Error())
		failed, getErr := r.opts.Store.GetJob(ctx, id)
		if getErr != nil {
			return nil, err
		}
		return failed, err
	}
	logf("job %s queued (%s)", id, name)
	return job, nil
}

func (r *Runner) saveUpload(path string, body io.Reader) error {
	w, err := r.opts.FS.Create(path)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("save upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

func (r *Runner) enqueue(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.queue <- id:
		r.opts.Metrics.QueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until the job reaches a terminal status or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (*db.Job, error) {
	done := r.waiter(id)
	for {
		job, err := r.opts.Store.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			r.dropWaiter(id, done)
			return job, nil
		}
		select {
		case <-done:
			done = r.waiter(id)
		case <-ctx.Done():
			return job, ctx.Err()
		}
	}
}

// waiter returns the channel closed when id next finishes. It must be taken
// before reading the job status so a completion in between is not missed.
func (r *Runner) waiter(id string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.waiters[id]
	if !ok {
		ch = make(chan struct{})
		r.waiters[id] = ch
	}
	return ch
}

// dropWaiter forgets ch if it is still registered for id. Anyone else holding
// it will read the same terminal status.
func (r *Runner) dropWaiter(id string, ch <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.waiters[id]; ok && (<-chan struct{})(cur) == ch {
		delete(r.waiters, id)
	}
}

// finish wakes every Wait call on id and runs the completion callback. The
// terminal status must already be stored.
func (r *Runner) finish(ctx context.Context, id string) {
	r.mu.Lock()
	if ch, ok := r.waiters[id]; ok {
		close(ch)
		delete(r.waiters, id)
	}
	r.mu.Unlock()

	if r.opts.OnComplete == nil {
		return
	}
	job, err := r.opts.Store.GetJob(ctx, id)
	if err != nil {
		logf("job %s: reload for callback: %v", id, err)
		return
	}
	r.opts.OnComplete(job)
}

func (r *Runner) fail(ctx context.Context, id, msg string) {
	if err := r.opts.Store.MarkFailed(ctx, id, msg); err != nil {
		logf("job %s: mark failed: %v", id, err)
	}
	r.opts.Metrics.Completed.WithLabelValues(string(db.JobFailed)).Inc()
	r.finish(ctx, id)
}
