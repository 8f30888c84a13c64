package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	"github.com/banshee-data/digital-toolbox/internal/timeutil"
)

var (
	// ErrJobNotFound is returned when no job has the requested ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the job's current status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobStatus is the lifecycle state of a job:
// queued -> running -> succeeded | failed. A queued job may also fail
// directly when it is dropped before a worker picks it up.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one uploaded file and the state of its processing.
type Job struct {
	ID           string     `json:"file_id"`
	Filename     string     `json:"filename"`
	UploadPath   string     `json:"-"`
	Status       JobStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	FixedMax     float64    `json:"fixed_max"`
	SceneCount   int        `json:"scene_count"`
	ClampedCount int        `json:"clamped_count"`
	SummaryPath  string     `json:"-"`
	PlotPath     string     `json:"-"`
	ChartPath    string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// HasPlot reports whether the job produced a scatter plot.
func (j *Job) HasPlot() bool {
	return j.Status == JobSucceeded && j.PlotPath != ""
}

// Outcome is what a successful run records on its job.
type Outcome struct {
	SceneCount   int
	ClampedCount int
	SummaryPath  string
	PlotPath     string
	ChartPath    string
}

// NewJobID returns a fresh job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// JobStore persists jobs and their computed scene coordinates.
type JobStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewJobStore returns a store backed by db. A nil clock means the wall clock.
func NewJobStore(db *DB, clock timeutil.Clock) *JobStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &JobStore{db: db, clock: clock}
}

const jobColumns = `job_id, filename, upload_path, status, error, fixed_max, scene_count,
	clamped_count, summary_path, plot_path, chart_path, created_at_ns, started_at_ns, finished_at_ns`

// InsertJob records a new queued job. An empty ID is filled with NewJobID.
// Status and CreatedAt are always set by the store.
func (s *JobStore) InsertJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = NewJobID()
	}
	job.Status = JobQueued
	job.Error = ""
	job.CreatedAt = s.clock.Now().UTC()
	job.StartedAt, job.FinishedAt = nil, nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, filename, upload_path, status, fixed_max, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, job.UploadPath, string(job.Status), job.FixedMax, job.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                 Job
		status            string
		created           int64
		started, finished sql.NullInt64
	)
	if err := row.Scan(&j.ID, &j.Filename, &j.UploadPath, &status, &j.Error, &j.FixedMax,
		&j.SceneCount, &j.ClampedCount, &j.SummaryPath, &j.PlotPath, &j.ChartPath,
		&created, &started, &finished); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.CreatedAt = time.Unix(0, created).UTC()
	j.StartedAt = nsTime(started)
	j.FinishedAt = nsTime(finished)
	return &j, nil
}

func nsTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

// GetJob returns the job with the given ID or ErrJobNotFound.
func (s *JobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// ListJobs returns up to limit jobs, newest first. limit <= 0 means 100.
func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// transition applies an UPDATE guarded by the allowed source statuses and
// distinguishes an unknown job from a disallowed transition.
func (s *JobStore) transition(ctx context.Context, id string, to JobStatus, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", id, to, err)
	}
	if n > 0 {
		return nil
	}
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, current.Status, to)
}

// MarkRunning moves a queued job to running and stamps its start time.
func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	now := s.clock.Now().UnixNano()
	return s.transition(ctx, id, JobRunning,
		`UPDATE jobs SET status = ?, started_at_ns = ? WHERE job_id = ? AND status = ?`,
		string(JobRunning), now, id, string(JobQueued))
}

// MarkSucceeded records the outcome of a running job.
func (s *JobStore) MarkSucceeded(ctx context.Context, id string, out Outcome) error {
	now := s.clock.Now().UnixNano()
	return s.transition(ctx, id, JobSucceeded, `
		UPDATE jobs SET status = ?, scene_count = ?, clamped_count = ?, summary_path = ?,
			plot_path = ?, chart_path = ?, finished_at_ns = ?
		WHERE job_id = ? AND status = ?`,
		string(JobSucceeded), out.SceneCount, out.ClampedCount, out.SummaryPath,
		out.PlotPath, out.ChartPath, now, id, string(JobRunning))
}

// MarkFailed records an error on a queued or running job.
func (s *JobStore) MarkFailed(ctx context.Context, id, errText string) error {
	now := s.clock.Now().UnixNano()
	return s.transition(ctx, id, JobFailed, `
		UPDATE jobs SET status = ?, error = ?, finished_at_ns = ?
		WHERE job_id = ? AND status IN (?, ?)`,
		string(JobFailed), errText, now, id, string(JobQueued), string(JobRunning))
}

// FailUnfinished marks every queued or running job failed with errText and
// returns how many were changed. A fresh process calls it before accepting
// work, since jobs left unfinished by an earlier process have no worker.
func (s *JobStore) FailUnfinished(ctx context.Context, errText string) (int64, error) {
	now := s.clock.Now().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, finished_at_ns = ?
		WHERE status IN (?, ?)`,
		string(JobFailed), errText, now, string(JobQueued), string(JobRunning))
	if err != nil {
		return 0, fmt.Errorf("fail unfinished jobs: %w", err)
	}
	return res.RowsAffected()
}

// InsertCoordinates stores every scene point of res against the job, in
// scene order, replacing any earlier rows.
func (s *JobStore) InsertCoordinates(ctx context.Context, jobID string, res *soundscape.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin coordinates tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM jobs WHERE job_id = ?`, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("check job %s: %w", jobID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scene_coordinates WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("clear coordinates for %s: %w", jobID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_coordinates (job_id, ordinal, scene_id, raw_p, raw_e, norm_p, norm_e, clamped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare coordinates insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range res.Points {
		if _, err := stmt.ExecContext(ctx, jobID, i, p.SceneID, p.Raw.P, p.Raw.E,
			p.Normalized.P, p.Normalized.E, p.Clamped); err != nil {
			return fmt.Errorf("insert coordinates for scene %q: %w", p.SceneID, err)
		}
	}
	return tx.Commit()
}

// Coordinates returns the stored scene points of a job in scene order.
func (s *JobStore) Coordinates(ctx context.Context, jobID string) ([]soundscape.ScenePoint, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_id, raw_p, raw_e, norm_p, norm_e, clamped
		FROM scene_coordinates WHERE job_id = ? ORDER BY ordinal`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query coordinates for %s: %w", jobID, err)
	}
	defer rows.Close()

	points := []soundscape.ScenePoint{}
	for rows.Next() {
		var p soundscape.ScenePoint
		if err := rows.Scan(&p.SceneID, &p.Raw.P, &p.Raw.E, &p.Normalized.P, &p.Normalized.E, &p.Clamped); err != nil {
			return nil, fmt.Errorf("scan coordinates: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
