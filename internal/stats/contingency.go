package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

// ErrDegenerateTable is returned when a contingency table cannot support a
// chi-squared test: fewer than two levels on either axis, or a margin
// with zero variance.
var ErrDegenerateTable = errors.DegenerateTest("degenerate contingency table")

// ContingencyTable holds observed cross-classification counts for two
// categorical vectors.
type ContingencyTable struct {
	RowLevels []string
	ColLevels []string
	Observed  [][]float64
	RowTotals []float64
	ColTotals []float64
	Total     float64
}

// Crosstab builds a contingency table from two categorical vectors of
// equal length. Levels are ordered lexicographically for stable output.
func Crosstab(rows, cols []string) (*ContingencyTable, error) {
	if len(rows) != len(cols) {
		return nil, errors.InvalidInput(fmt.Sprintf("vector length mismatch: %d vs %d", len(rows), len(cols)))
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("empty vectors")
	}

	rowIdx := levelIndex(rows)
	colIdx := levelIndex(cols)

	t := &ContingencyTable{
		RowLevels: sortedLevels(rowIdx),
		ColLevels: sortedLevels(colIdx),
	}
	t.Observed = make([][]float64, len(t.RowLevels))
	for i := range t.Observed {
		t.Observed[i] = make([]float64, len(t.ColLevels))
	}

	// Remap after sorting.
	rowIdx = indexOf(t.RowLevels)
	colIdx = indexOf(t.ColLevels)

	for i := range rows {
		t.Observed[rowIdx[rows[i]]][colIdx[cols[i]]]++
	}

	t.RowTotals = make([]float64, len(t.RowLevels))
	t.ColTotals = make([]float64, len(t.ColLevels))
	for i := range t.Observed {
		for j := range t.Observed[i] {
			t.RowTotals[i] += t.Observed[i][j]
			t.ColTotals[j] += t.Observed[i][j]
			t.Total += t.Observed[i][j]
		}
	}

	return t, nil
}

// Expected returns the expected frequencies under independence. Their sum
// equals the observed grand total.
func (t *ContingencyTable) Expected() [][]float64 {
	expected := make([][]float64, len(t.RowLevels))
	for i := range expected {
		expected[i] = make([]float64, len(t.ColLevels))
		for j := range expected[i] {
			expected[i][j] = t.RowTotals[i] * t.ColTotals[j] / t.Total
		}
	}
	return expected
}

// IsDegenerate reports whether the table cannot support an independence
// test: fewer than two levels on either axis, or a zero margin.
func (t *ContingencyTable) IsDegenerate() bool {
	if len(t.RowLevels) < 2 || len(t.ColLevels) < 2 {
		return true
	}
	for _, rt := range t.RowTotals {
		if rt == 0 {
			return true
		}
	}
	for _, ct := range t.ColTotals {
		if ct == 0 {
			return true
		}
	}
	return false
}

// ChiSquareResult holds the output of a Pearson chi-squared test of
// independence.
type ChiSquareResult struct {
	Statistic float64     `json:"statistic"`
	DF        int         `json:"df"`
	PValue    float64     `json:"p_value"`
	N         int         `json:"n"`
	CramersV  float64     `json:"cramers_v"`
	Observed  [][]float64 `json:"observed"`
	Expected  [][]float64 `json:"expected"`
	RowLevels []string    `json:"row_levels"`
	ColLevels []string    `json:"col_levels"`
}

// ChiSquareTest computes Pearson's chi-squared test of independence on
// the table, without Yates continuity correction. A degenerate table
// yields ErrDegenerateTable; the caller renders the test as undefined
// rather than aborting the report.
func ChiSquareTest(t *ContingencyTable) (*ChiSquareResult, error) {
	if t.IsDegenerate() {
		return nil, ErrDegenerateTable
	}

	expected := t.Expected()
	statistic := 0.0
	for i := range t.Observed {
		for j := range t.Observed[i] {
			diff := t.Observed[i][j] - expected[i][j]
			statistic += diff * diff / expected[i][j]
		}
	}

	df := (len(t.RowLevels) - 1) * (len(t.ColLevels) - 1)
	dist := distuv.ChiSquared{K: float64(df)}
	pValue := dist.Survival(statistic)
	if pValue < 0 {
		pValue = 0
	}
	if pValue > 1 {
		pValue = 1
	}

	minDim := float64(len(t.RowLevels) - 1)
	if c := float64(len(t.ColLevels) - 1); c < minDim {
		minDim = c
	}
	cramersV := 0.0
	if t.Total > 0 && minDim > 0 {
		cramersV = math.Sqrt(statistic / (t.Total * minDim))
	}

	return &ChiSquareResult{
		Statistic: statistic,
		DF:        df,
		PValue:    pValue,
		N:         int(t.Total),
		CramersV:  cramersV,
		Observed:  t.Observed,
		Expected:  expected,
		RowLevels: t.RowLevels,
		ColLevels: t.ColLevels,
	}, nil
}

// Significant reports whether the test rejects independence at alpha.
func (r *ChiSquareResult) Significant(alpha float64) bool {
	return r.PValue < alpha
}

func levelIndex(values []string) map[string]int {
	idx := make(map[string]int)
	for _, v := range values {
		if _, ok := idx[v]; !ok {
			idx[v] = len(idx)
		}
	}
	return idx
}

func sortedLevels(idx map[string]int) []string {
	levels := make([]string, 0, len(idx))
	for level := range idx {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return levels
}

func indexOf(levels []string) map[string]int {
	idx := make(map[string]int, len(levels))
	for i, level := range levels {
		idx[level] = i
	}
	return idx
}
