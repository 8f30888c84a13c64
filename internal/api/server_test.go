package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/jobs"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	tu "github.com/banshee-data/digital-toolbox/internal/testutil"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

type testServer struct {
	srv    *Server
	mux    *http.ServeMux
	runner *jobs.Runner
	store  *db.JobStore
}

func newTestServer(t *testing.T, start bool, mutate func(*jobs.Options)) *testServer {
	t.Helper()
	tu.MuteLogs(t)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := db.NewJobStore(database, nil)
	opts := jobs.Options{
		Store:     store,
		FS:        fsutil.NewMemoryFileSystem(),
		FixedMax:  soundscape.DefaultFixedMax,
		Workers:   1,
		QueueSize: 4,
	}
	if mutate != nil {
		mutate(&opts)
	}
	runner, err := jobs.NewRunner(opts)
	require.NoError(t, err)
	if start {
		runner.Start(context.Background())
	}
	t.Cleanup(runner.Stop)

	srv := NewServer(runner, 0)
	return &testServer{srv: srv, mux: srv.ServeMux(), runner: runner, store: store}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts *testServer) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := tu.MultipartFile(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	return ts.do(t, req)
}

func (ts *testServer) uploadAndWait(t *testing.T, filename, content string) UploadResponse {
	t.Helper()
	rec := ts.upload(t, filename, content)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ts.runner.Wait(ctx, resp.FileID)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	return m
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.get(t, "/")

	tu.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"message":"Welcome to the Digital Toolbox API!"}`, rec.Body.String())

	tu.AssertStatusCode(t, ts.get(t, "/nowhere").Code, http.StatusNotFound)
}

func TestUpload_Accepted(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.upload(t, "my scenes.csv", tu.SceneCSV)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "File uploaded successfully and processing started.", resp.Message)
	assert.Len(t, resp.FileID, 36)
	assert.Equal(t, "my_scenes.csv", resp.Filename)
	assert.Equal(t, db.JobQueued, resp.Status)
}

func TestUpload_WithoutTrailingSlash(t *testing.T) {
	ts := newTestServer(t, false, nil)
	body, contentType := tu.MultipartFile(t, "file", "a.csv", tu.SceneCSV)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	assert.Equal(t, http.StatusAccepted, ts.do(t, req).Code)
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t, false, nil)

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload/", strings.NewReader("scene,e"))
		req.Header.Set("Content-Type", "text/csv")
		assert.Equal(t, http.StatusBadRequest, ts.do(t, req).Code)
	})

	t.Run("wrong field", func(t *testing.T) {
		body, contentType := tu.MultipartFile(t, "upload", "a.csv", tu.SceneCSV)
		req := httptest.NewRequest(http.MethodPost, "/upload/", body)
		req.Header.Set("Content-Type", contentType)
		rec := ts.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeJSON(t, rec)["error"], "file")
	})

	t.Run("wrong method", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, ts.get(t, "/upload/").Code)
	})
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t, false, nil)
	ts.srv.maxUploadBytes = 1024
	mux := ts.srv.ServeMux()

	big := tu.SceneCSV + strings.Repeat("S9,0,0,0,0,0,0,0,0\n", 200)
	body, contentType := tu.MultipartFile(t, "file", "big.csv", big)
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_QueueFull(t *testing.T) {
	ts := newTestServer(t, false, func(o *jobs.Options) { o.QueueSize = 1 })

	require.Equal(t, http.StatusAccepted, ts.upload(t, "a.csv", tu.SceneCSV).Code)
	rec := ts.upload(t, "b.csv", tu.SceneCSV)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, jobs.ErrQueueFull.Error(), decodeJSON(t, rec)["error"])
}

func TestResult_Lifecycle(t *testing.T) {
	ts := newTestServer(t, true, nil)
	up := ts.uploadAndWait(t, "scenes.csv", tu.SceneCSV)

	rec := ts.get(t, "/result/"+up.FileID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))

	rec = ts.get(t, "/result/"+up.FileID+"/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "S1 - S2")

	rec = ts.get(t, "/result/"+up.FileID+"/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeJSON(t, rec)
	assert.Equal(t, "scenes.csv", doc["filename"])
	assert.Contains(t, doc, "processed_at")
	assert.Contains(t, doc["summary"], "scene")

	rec = ts.get(t, "/result/"+up.FileID+"/coordinates")
	require.Equal(t, http.StatusOK, rec.Code)
	var coords struct {
		FileID   string                  `json:"file_id"`
		FixedMax float64                 `json:"fixed_max"`
		Points   []soundscape.ScenePoint `json:"points"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&coords))
	assert.Equal(t, up.FileID, coords.FileID)
	assert.Equal(t, 7.0, coords.FixedMax)
	require.Len(t, coords.Points, 3)
	assert.InDelta(t, 1.0/7.0, coords.Points[1].Normalized.P, 1e-12)

	rec = ts.get(t, "/jobs/"+up.FileID)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeJSON(t, rec)
	assert.Equal(t, "succeeded", job["status"])
	assert.Equal(t, 3.0, job["scene_count"])
	assert.NotContains(t, job, "upload_path", "server paths stay private")
}

func TestResult_Pending(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.upload(t, "scenes.csv", tu.SceneCSV)
	var up UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&up))

	for _, suffix := range []string{"", "/chart", "/summary", "/coordinates"} {
		rec := ts.get(t, "/result/"+up.FileID+suffix)
		assert.Equal(t, http.StatusAccepted, rec.Code, suffix)
		assert.Equal(t, "queued", decodeJSON(t, rec)["status"], suffix)
	}
}

func TestResult_Failed(t *testing.T) {
	ts := newTestServer(t, true, nil)
	up := ts.uploadAndWait(t, "bad.csv", "scene,e,v,p,ca,u,m,a,ch\nS1,1,2,3\n")

	rec := ts.get(t, "/result/"+up.FileID)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestResult_NoPlotForPlainTable(t *testing.T) {
	ts := newTestServer(t, true, nil)
	up := ts.uploadAndWait(t, "levels.csv", tu.PlainCSV)

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/result/"+up.FileID).Code)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/result/"+up.FileID+"/chart").Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/result/"+up.FileID+"/summary").Code)

	rec := ts.get(t, "/result/"+up.FileID+"/coordinates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON(t, rec)["points"])
}

func TestResult_HeaderOnlySceneTable(t *testing.T) {
	ts := newTestServer(t, true, nil)
	up := ts.uploadAndWait(t, "empty.csv", "scene,e,v,p,ca,u,m,a,ch\n")

	assert.Equal(t, "succeeded", decodeJSON(t, ts.get(t, "/jobs/"+up.FileID))["status"])
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/result/"+up.FileID).Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/result/"+up.FileID+"/summary").Code)
}

func TestResult_Unknown(t *testing.T) {
	ts := newTestServer(t, false, nil)
	for _, path := range []string{"/result/nope", "/result/nope/summary", "/jobs/nope"} {
		rec := ts.get(t, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "file_id not found", decodeJSON(t, rec)["error"], path)
	}
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t, false, nil)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusAccepted, ts.upload(t, fmt.Sprintf("s%d.csv", i), tu.SceneCSV).Code)
	}

	rec := ts.get(t, "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 3)

	rec = ts.get(t, "/jobs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/jobs?limit=zero").Code)
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.get(t, "/dashboard")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Digital Toolbox Dashboard")
	assert.Contains(t, rec.Body.String(), "Result not ready yet or file_id not found.")
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.uploadAndWait(t, "scenes.csv", tu.SceneCSV)

	rec := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toolbox_jobs_submitted_total 1")
	assert.Contains(t, rec.Body.String(), `toolbox_jobs_completed_total{status="succeeded"} 1`)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result/abc?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), statusCodeColor(http.StatusTeapot))
	assert.Contains(t, buf.String(), "/result/abc?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}
