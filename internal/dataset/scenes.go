package dataset

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

// idColumnCandidates are tried in order when no ID column is configured.
var idColumnCandidates = []string{"scene", "scene_id", "id"}

// HasMeasurementColumns reports whether every measurement column is present.
func HasMeasurementColumns(t *Table) bool {
	for _, c := range soundscape.MeasurementColumns {
		if t.ColumnIndex(c) < 0 {
			return false
		}
	}
	return true
}

// resolveIDColumn picks the scene identifier column.
func resolveIDColumn(t *Table, idColumn string) (int, error) {
	if idColumn != "" {
		idx := t.ColumnIndex(idColumn)
		if idx < 0 {
			return -1, fmt.Errorf("%w: id column %q not found", soundscape.ErrInvalidInput, idColumn)
		}
		return idx, nil
	}
	for _, c := range idColumnCandidates {
		if idx := t.ColumnIndex(c); idx >= 0 {
			return idx, nil
		}
	}
	if len(t.Columns) == 0 {
		return -1, fmt.Errorf("%w: table has no columns", soundscape.ErrInvalidInput)
	}
	return 0, nil
}

// ScenesFromTable converts rows into an ordered scene set. idColumn may be
// empty, in which case "scene", "scene_id" or "id" is used, falling back to the
// first column. A missing column, blank cell or non-numeric value rejects the
// whole table.
func ScenesFromTable(t *Table, idColumn string) (*soundscape.SceneSet, error) {
	idIdx, err := resolveIDColumn(t, idColumn)
	if err != nil {
		return nil, err
	}

	var cols [8]int
	for i, name := range soundscape.MeasurementColumns {
		cols[i] = t.ColumnIndex(name)
		if cols[i] < 0 {
			return nil, fmt.Errorf("%w: missing measurement column %q", soundscape.ErrInvalidInput, name)
		}
	}

	set := &soundscape.SceneSet{}
	for r, row := range t.Rows {
		line := r + 2 // header is line 1
		id := strings.TrimSpace(row[idIdx])

		vals := make([]float64, len(cols))
		for i, c := range cols {
			cell := strings.TrimSpace(row[c])
			if cell == "" {
				return nil, fmt.Errorf("%w: line %d: column %q is empty",
					soundscape.ErrInvalidInput, line, soundscape.MeasurementColumns[i])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d: column %q value %q is not a finite number",
					soundscape.ErrInvalidInput, line, soundscape.MeasurementColumns[i], cell)
			}
			vals[i] = v
		}

		m, err := soundscape.MeasurementsFromSlice(vals)
		if err != nil {
			return nil, err
		}
		if err := set.Add(id, m); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return set, nil
}

// LoadScenesFile reads a CSV file from disk and converts it into scenes.
func LoadScenesFile(path, idColumn string) (*soundscape.SceneSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ScenesFromTable(t, idColumn)
}
