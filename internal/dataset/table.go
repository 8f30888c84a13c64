// Package dataset loads delimited survey tables and turns them into scene sets.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmptyTable is returned when the input has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// Table is a header row plus string records, as read from a CSV file.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadTable parses comma-delimited text with a header row. Every record must
// have as many fields as the header.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ColumnIndex returns the index of the named column, matched case-insensitively.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Column returns the raw values of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = strings.TrimSpace(row[idx])
	}
	return out, true
}

// NumericColumn returns the non-empty values of the named column parsed as
// float64. ok is false when the column is missing, has no values, or any
// non-empty cell is not a number.
func (t *Table) NumericColumn(name string) ([]float64, bool) {
	raw, found := t.Column(name)
	if !found {
		return nil, false
	}
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
