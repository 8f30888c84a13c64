package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/httputil"
)

var (
	// ErrNotReady means the job is still queued or running.
	ErrNotReady = errors.New("result not ready yet")
	// ErrNotFound means the server knows no such file_id, or it has no plot.
	ErrNotFound = errors.New("file_id not found")
	// ErrJobFailed means processing finished with an error.
	ErrJobFailed = errors.New("processing failed")
)

// Client talks to a toolbox server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil c uses
// http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	return resp, body, nil
}

// statusError maps a non-200 result response onto the client errors.
func statusError(resp *http.Response, body []byte) error {
	var st struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(body, &st)
	switch resp.StatusCode {
	case http.StatusAccepted:
		return fmt.Errorf("%w (status %s)", ErrNotReady, st.Status)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrJobFailed, st.Error)
	default:
		if st.Error != "" {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, st.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// Result fetches the PNG plot for a file ID.
func (c *Client) Result(ctx context.Context, id string) ([]byte, error) {
	resp, body, err := c.get(ctx, "/result/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, body)
	}
	return body, nil
}

// WaitResult polls Result every interval while the job is not ready.
func (c *Client) WaitResult(ctx context.Context, id string, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		png, err := c.Result(ctx, id)
		if !errors.Is(err, ErrNotReady) {
			return png, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Job fetches a job's status.
func (c *Client) Job(ctx context.Context, id string) (*db.Job, error) {
	resp, body, err := c.get(ctx, "/jobs/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, body)
	}
	var job db.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Upload sends a file to POST /upload/.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, statusError(resp, body)
	}
	var out UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &out, nil
}
