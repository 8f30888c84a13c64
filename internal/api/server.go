package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/jobs"
)

// ANSI escape codes used by LoggingMiddleware.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the Digital Toolbox API!"

// DefaultMaxUploadBytes caps uploads when the server is given no limit.
const DefaultMaxUploadBytes = 32 << 20

type Server struct {
	runner         *jobs.Runner
	store          *db.JobStore
	fs             fsutil.FileSystem
	maxUploadBytes int64
}

// NewServer returns a server that hands uploads to runner. maxUploadBytes <= 0
// selects DefaultMaxUploadBytes.
func NewServer(runner *jobs.Runner, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{
		runner:         runner,
		store:          runner.Store(),
		fs:             runner.FS(),
		maxUploadBytes: maxUploadBytes,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the public routes. Admin routes are attached separately.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload/{$}", s.handleUpload)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /result/{id}", s.handleResultPlot)
	mux.HandleFunc("GET /result/{id}/summary", s.handleResultSummary)
	mux.HandleFunc("GET /result/{id}/coordinates", s.handleResultCoordinates)
	mux.HandleFunc("GET /result/{id}/chart", s.handleResultChart)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.Handle("GET /metrics", s.runner.Metrics().Handler())
	return mux
}
