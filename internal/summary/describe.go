// Package summary computes descriptive statistics for uploaded tables and
// persists the processing result document.
package summary

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/digital-toolbox/internal/dataset"
)

// ColumnSummary holds the describe() statistics of one column. Numeric columns
// fill the moment and quantile fields; other columns fill Unique, Top and Freq.
type ColumnSummary struct {
	Count  int      `json:"count"`
	Unique *int     `json:"unique,omitempty"`
	Top    *string  `json:"top,omitempty"`
	Freq   *int     `json:"freq,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Q25    *float64 `json:"25%,omitempty"`
	Q50    *float64 `json:"50%,omitempty"`
	Q75    *float64 `json:"75%,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// IsNumeric reports whether the column was summarised as numeric.
func (c ColumnSummary) IsNumeric() bool { return c.Mean != nil }

// Describe summarises every column of t. Blank cells are treated as missing
// and excluded from all statistics. A column is numeric when every non-blank
// cell parses as a number and there is at least one such cell.
func Describe(t *dataset.Table) map[string]ColumnSummary {
	out := make(map[string]ColumnSummary, len(t.Columns))
	for _, name := range t.Columns {
		raw, _ := t.Column(name)
		values := nonBlank(raw)

		if nums, ok := parseAll(values); ok {
			out[name] = describeNumeric(nums)
		} else {
			out[name] = describeCategorical(values)
		}
	}
	return out
}

func nonBlank(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseAll(values []string) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	nums := make([]float64, len(values))
	for i, s := range values {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		nums[i] = v
	}
	return nums, true
}

func describeNumeric(x []float64) ColumnSummary {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	s := ColumnSummary{
		Count: len(x),
		Mean:  ptr(stat.Mean(x, nil)),
		Min:   ptr(floats.Min(x)),
		Max:   ptr(floats.Max(x)),
		Q25:   ptr(Quantile(sorted, 0.25)),
		Q50:   ptr(Quantile(sorted, 0.50)),
		Q75:   ptr(Quantile(sorted, 0.75)),
	}
	// sample standard deviation is undefined for a single value
	if len(x) > 1 {
		s.Std = ptr(stat.StdDev(x, nil))
	}
	return s
}

func describeCategorical(values []string) ColumnSummary {
	s := ColumnSummary{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	top, freq := order[0], counts[order[0]]
	for _, v := range order[1:] {
		if counts[v] > freq {
			top, freq = v, counts[v]
		}
	}
	unique := len(order)
	s.Unique = &unique
	s.Top = &top
	s.Freq = &freq
	return s
}

// Quantile returns the q-th quantile of sorted data using linear interpolation
// between closest ranks at position (n-1)*q.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func ptr[T any](v T) *T { return &v }
