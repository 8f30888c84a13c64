// Package config loads the toolbox service configuration from JSON.
//
// Every field is optional: omitted values fall back to the defaults returned
// by the Get* accessors, so a partial file is always safe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/toolbox.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024

// Defaults used when a field is omitted.
const (
	DefaultListen         = ":8000"
	DefaultDBPath         = "toolbox.db"
	DefaultUploadDir      = "uploads"
	DefaultResultsDir     = "results"
	DefaultWorkers        = 2
	DefaultQueueSize      = 64
	DefaultMaxUploadBytes = 32 << 20
	DefaultPlotTitle      = "Soundscape circumplex"
)

var validate = validator.New()

// ToolboxConfig is the root configuration document.
type ToolboxConfig struct {
	Listen         *string  `json:"listen,omitempty" validate:"omitempty,hostname_port"`
	DBPath         *string  `json:"db_path,omitempty" validate:"omitempty,min=1"`
	UploadDir      *string  `json:"upload_dir,omitempty" validate:"omitempty,min=1"`
	ResultsDir     *string  `json:"results_dir,omitempty" validate:"omitempty,min=1"`
	FixedMax       *float64 `json:"fixed_max,omitempty" validate:"omitempty,gt=0"`
	Workers        *int     `json:"workers,omitempty" validate:"omitempty,min=1,max=64"`
	QueueSize      *int     `json:"queue_size,omitempty" validate:"omitempty,min=1,max=10000"`
	MaxUploadBytes *int64   `json:"max_upload_bytes,omitempty" validate:"omitempty,min=1024"`

	// Connections lists [from, to] scene pairs to join on the plot. Empty
	// means consecutive scenes in input order.
	Connections [][2]string `json:"connections,omitempty" validate:"omitempty,dive,dive,required"`

	// IDColumn names the scene identifier column of uploaded tables. Empty
	// means auto-detect.
	IDColumn  *string `json:"id_column,omitempty"`
	PlotTitle *string `json:"plot_title,omitempty" validate:"omitempty,max=200"`
}

func ptr[T any](v T) *T { return &v }

// EmptyToolboxConfig returns a config with every field unset.
func EmptyToolboxConfig() *ToolboxConfig {
	return &ToolboxConfig{}
}

// DefaultToolboxConfig returns a config with every field set to its default.
func DefaultToolboxConfig() *ToolboxConfig {
	return &ToolboxConfig{
		Listen:         ptr(DefaultListen),
		DBPath:         ptr(DefaultDBPath),
		UploadDir:      ptr(DefaultUploadDir),
		ResultsDir:     ptr(DefaultResultsDir),
		FixedMax:       ptr(soundscape.DefaultFixedMax),
		Workers:        ptr(DefaultWorkers),
		QueueSize:      ptr(DefaultQueueSize),
		MaxUploadBytes: ptr(int64(DefaultMaxUploadBytes)),
		IDColumn:       ptr(""),
		PlotTitle:      ptr(DefaultPlotTitle),
	}
}

// LoadToolboxConfig reads and validates a config file. The path must carry a
// .json extension and the file must be under 1 MiB.
func LoadToolboxConfig(path string) (*ToolboxConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyToolboxConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the struct tags, then the rules tags cannot express.
func (c *ToolboxConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.FixedMax != nil {
		if err := soundscape.ValidateFixedMax(*c.FixedMax); err != nil {
			return fmt.Errorf("fixed_max: %w", err)
		}
	}
	return nil
}

// formatValidationError reports the first failing field in a readable form.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "max":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	case "gt":
		return fmt.Errorf("%s: must be greater than %s", field, e.Param())
	case "hostname_port":
		return fmt.Errorf("%s: must be host:port, got %v", field, e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// GetListen returns the HTTP listen address.
func (c *ToolboxConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns the sqlite database path.
func (c *ToolboxConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetUploadDir returns the directory uploads are saved under.
func (c *ToolboxConfig) GetUploadDir() string {
	if c.UploadDir == nil || *c.UploadDir == "" {
		return DefaultUploadDir
	}
	return *c.UploadDir
}

// GetResultsDir returns the directory job artefacts are written under.
func (c *ToolboxConfig) GetResultsDir() string {
	if c.ResultsDir == nil || *c.ResultsDir == "" {
		return DefaultResultsDir
	}
	return *c.ResultsDir
}

// GetFixedMax returns the normalization divisor.
func (c *ToolboxConfig) GetFixedMax() float64 {
	if c.FixedMax == nil {
		return soundscape.DefaultFixedMax
	}
	return *c.FixedMax
}

// GetWorkers returns the job worker count.
func (c *ToolboxConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetQueueSize returns the job queue capacity.
func (c *ToolboxConfig) GetQueueSize() int {
	if c.QueueSize == nil {
		return DefaultQueueSize
	}
	return *c.QueueSize
}

// GetMaxUploadBytes returns the largest accepted upload.
func (c *ToolboxConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return DefaultMaxUploadBytes
	}
	return *c.MaxUploadBytes
}

// GetIDColumn returns the configured scene ID column, or "" for auto-detect.
func (c *ToolboxConfig) GetIDColumn() string {
	if c.IDColumn == nil {
		return ""
	}
	return *c.IDColumn
}

// GetPlotTitle returns the title drawn on rendered plots.
func (c *ToolboxConfig) GetPlotTitle() string {
	if c.PlotTitle == nil || *c.PlotTitle == "" {
		return DefaultPlotTitle
	}
	return *c.PlotTitle
}

// ConnectionPolicy returns the scene pairing policy the config describes.
func (c *ToolboxConfig) ConnectionPolicy() soundscape.ConnectionPolicy {
	pairs := make([]soundscape.Connection, 0, len(c.Connections))
	for _, p := range c.Connections {
		pairs = append(pairs, soundscape.Connection{From: p[0], To: p[1]})
	}
	return soundscape.PolicyFor(pairs)
}
