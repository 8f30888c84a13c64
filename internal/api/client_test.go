package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/httputil"
	tu "github.com/banshee-data/digital-toolbox/internal/testutil"
)

func TestClient_UploadAndWait(t *testing.T) {
	ts := newTestServer(t, true, nil)
	srv := httptest.NewServer(ts.mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	up, err := c.Upload(ctx, "scenes.csv", strings.NewReader(tu.SceneCSV))
	require.NoError(t, err)
	assert.Equal(t, db.JobQueued, up.Status)

	png, err := c.WaitResult(ctx, up.FileID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	job, err := c.Job(ctx, up.FileID)
	require.NoError(t, err)
	assert.Equal(t, db.JobSucceeded, job.Status)
	assert.Equal(t, 3, job.SceneCount)

	_, err = c.Result(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Job(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ResultStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		errText string
	}{
		{"pending", http.StatusAccepted, `{"file_id":"x","status":"running"}`, ErrNotReady, "running"},
		{"missing", http.StatusNotFound, `{"error":"file_id not found"}`, ErrNotFound, ""},
		{"failed", http.StatusConflict, `{"status":"failed","error":"line 3: bad"}`, ErrJobFailed, "line 3: bad"},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, nil, "unexpected status 500: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient().AddResponse(tt.status, "application/json", []byte(tt.body))
			_, err := NewClient("http://toolbox", mock).Result(context.Background(), "x")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.errText)
			assert.Equal(t, "/result/x", mock.Request(0).URL.Path)
		})
	}
}

func TestClient_WaitResultPolls(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusAccepted, "application/json", []byte(`{"status":"queued"}`)).
		AddResponse(http.StatusAccepted, "application/json", []byte(`{"status":"running"}`)).
		AddResponse(http.StatusOK, "image/png", pngMagic)

	png, err := NewClient("http://toolbox", mock).WaitResult(context.Background(), "abc", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, pngMagic, png)
	assert.Equal(t, 3, mock.RequestCount())
}

func TestClient_WaitResultStopsOnFailure(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusAccepted, "application/json", []byte(`{"status":"running"}`)).
		AddResponse(http.StatusConflict, "application/json", []byte(`{"status":"failed","error":"bad"}`))

	_, err := NewClient("http://toolbox", mock).WaitResult(context.Background(), "abc", time.Millisecond)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestClient_WaitResultTimeout(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	for i := 0; i < 100; i++ {
		mock.AddResponse(http.StatusAccepted, "application/json", []byte(`{"status":"queued"}`))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient("http://toolbox", mock).WaitResult(ctx, "abc", 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_TransportError(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddError(errors.New("connection refused"))
	_, err := NewClient("http://toolbox", mock).Result(context.Background(), "abc")
	assert.ErrorContains(t, err, "connection refused")
}

func TestClient_UploadRejected(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusServiceUnavailable, "application/json", []byte(`{"error":"job queue is full"}`))

	_, err := NewClient("http://toolbox", mock).Upload(context.Background(), "a.csv", strings.NewReader("x"))
	assert.ErrorContains(t, err, "job queue is full")

	req := mock.Request(0)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/upload/", req.URL.Path)
	assert.True(t, strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data"))
}
