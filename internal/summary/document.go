package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/dataset"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// Document is the JSON result written for every processed upload.
type Document struct {
	Filename    string                   `json:"filename"`
	ProcessedAt time.Time                `json:"processed_at"`
	Rows        int                      `json:"rows"`
	Columns     []string                 `json:"columns"`
	Summary     map[string]ColumnSummary `json:"summary"`
	Coordinates *soundscape.Result       `json:"coordinates,omitempty"`
}

// NewDocument builds the summary document for a table.
func NewDocument(filename string, t *dataset.Table, processedAt time.Time) *Document {
	return &Document{
		Filename:    filename,
		ProcessedAt: processedAt,
		Rows:        len(t.Rows),
		Columns:     append([]string(nil), t.Columns...),
		Summary:     Describe(t),
	}
}

// WriteJSON encodes v with indentation and writes it to path atomically: the
// data goes to a sibling temp file which is then renamed over path.
func WriteJSON(fsys fsutil.FileSystem, path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("make dir for %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp for %s: %w", filepath.Base(path), err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadDocument loads a previously written document.
func ReadDocument(fsys fsutil.FileSystem, path string) (*Document, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}
