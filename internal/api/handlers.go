package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/httputil"
	"github.com/banshee-data/digital-toolbox/internal/jobs"
	"github.com/banshee-data/digital-toolbox/internal/summary"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// UploadResponse is returned by POST /upload/.
type UploadResponse struct {
	Message  string       `json:"message"`
	FileID   string       `json:"file_id"`
	Filename string       `json:"filename"`
	Status   db.JobStatus `json:"status"`
}

// StatusResponse is returned while a result is not ready.
type StatusResponse struct {
	FileID string       `json:"file_id"`
	Status db.JobStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"message": WelcomeMessage})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.PayloadTooLarge(w, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		httputil.BadRequest(w, "expected multipart form with a 'file' field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing 'file' field")
		return
	}
	defer file.Close()

	job, err := s.runner.Submit(r.Context(), jobs.Upload{Filename: header.Filename, Body: file})
	switch {
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		httputil.ServiceUnavailable(w, err.Error())
		return
	case err != nil:
		log.Printf("[api] upload %q: %v", header.Filename, err)
		httputil.InternalServerError(w, "failed to store upload")
		return
	}

	httputil.Accepted(w, UploadResponse{
		Message:  "File uploaded successfully and processing started.",
		FileID:   job.ID,
		Filename: job.Filename,
		Status:   job.Status,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.store.ListJobs(r.Context(), limit)
	if err != nil {
		log.Printf("[api] list jobs: %v", err)
		httputil.InternalServerError(w, "failed to list jobs")
		return
	}
	httputil.WriteJSONOK(w, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, job)
}

// lookupJob loads the job named by the {id} path value, writing a 404 or 500
// when it cannot.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*db.Job, bool) {
	id := r.PathValue("id")
	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, db.ErrJobNotFound) {
		httputil.NotFound(w, "file_id not found")
		return nil, false
	}
	if err != nil {
		log.Printf("[api] get job %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load job")
		return nil, false
	}
	return job, true
}

// readyJob loads a job and checks it has finished successfully. Queued and
// running jobs get 202 with their status; failed jobs get 409 with the error.
func (s *Server) readyJob(w http.ResponseWriter, r *http.Request) (*db.Job, bool) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return nil, false
	}
	switch job.Status {
	case db.JobSucceeded:
		return job, true
	case db.JobFailed:
		httputil.WriteJSON(w, http.StatusConflict, StatusResponse{FileID: job.ID, Status: job.Status, Error: job.Error})
	default:
		httputil.Accepted(w, StatusResponse{FileID: job.ID, Status: job.Status})
	}
	return nil, false
}

func (s *Server) handleResultPlot(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}
	if job.PlotPath == "" {
		httputil.NotFound(w, "no plot for this file: it has no measurement columns")
		return
	}
	s.serveFile(w, job.PlotPath, "image/png")
}

func (s *Server) handleResultChart(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}
	if job.ChartPath == "" {
		httputil.NotFound(w, "no chart for this file: it has no measurement columns")
		return
	}
	s.serveFile(w, job.ChartPath, "text/html; charset=utf-8")
}

func (s *Server) handleResultSummary(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}
	doc, err := summary.ReadDocument(s.fs, job.SummaryPath)
	if err != nil {
		log.Printf("[api] read summary for %s: %v", job.ID, err)
		httputil.InternalServerError(w, "failed to read summary")
		return
	}
	httputil.WriteJSONOK(w, doc)
}

func (s *Server) handleResultCoordinates(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}
	points, err := s.store.Coordinates(r.Context(), job.ID)
	if err != nil {
		log.Printf("[api] coordinates for %s: %v", job.ID, err)
		httputil.InternalServerError(w, "failed to load coordinates")
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"file_id":       job.ID,
		"fixed_max":     job.FixedMax,
		"clamped_count": job.ClampedCount,
		"points":        points,
	})
}

func (s *Server) serveFile(w http.ResponseWriter, path, contentType string) {
	f, err := s.fs.Open(path)
	if err != nil {
		log.Printf("[api] open %s: %v", path, err)
		httputil.NotFound(w, "result file missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("[api] stream %s: %v", path, err)
	}
}
