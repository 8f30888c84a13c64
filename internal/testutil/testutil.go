// Package testutil provides shared test fixtures and helpers.
package testutil

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/digital-toolbox/internal/monitoring"
)

// SceneCSV is a three-scene survey table with every measurement column.
// S1 sits at the origin, S2 is pure pleasantness, S3 is pure eventfulness.
const SceneCSV = `scene,e,v,p,ca,u,m,a,ch
S1,0,0,0,0,0,0,0,0
S2,0,0,1,0,0,0,0,0
S3,1,0,0,0,0,0,0,0
`

// PlainCSV is a table without measurement columns; it only gets a summary.
const PlainCSV = `site,level_db,weather
north,54.5,dry
south,61.0,wet
east,58.25,dry
`

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// MultipartFile builds a multipart body holding one file part and returns it
// with its Content-Type header value.
func MultipartFile(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// MuteLogs silences the monitoring logger for the duration of the test.
func MuteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
