package stats

import (
	"math"
	"testing"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

func repeat(value string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// buildVectors expands a 2x2 count layout into paired factor vectors.
func buildVectors(counts [2][2]int, rowLevels, colLevels [2]string) (rows, cols []string) {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			rows = append(rows, repeat(rowLevels[i], counts[i][j])...)
			cols = append(cols, repeat(colLevels[j], counts[i][j])...)
		}
	}
	return rows, cols
}

func TestCrosstab_TotalsInvariant(t *testing.T) {
	rows, cols := buildVectors([2][2]int{{20, 10}, {10, 20}}, [2]string{"a", "b"}, [2]string{"x", "y"})

	table, err := Crosstab(rows, cols)
	if err != nil {
		t.Fatalf("Crosstab failed: %v", err)
	}

	if table.Total != 60 {
		t.Errorf("Expected grand total 60, got %.0f", table.Total)
	}
	rowSum := table.RowTotals[0] + table.RowTotals[1]
	colSum := table.ColTotals[0] + table.ColTotals[1]
	if rowSum != table.Total || colSum != table.Total {
		t.Errorf("Margins do not sum to the grand total: rows=%.0f cols=%.0f", rowSum, colSum)
	}

	// Expected frequencies preserve the grand total.
	expected := table.Expected()
	sum := 0.0
	for i := range expected {
		for j := range expected[i] {
			sum += expected[i][j]
		}
	}
	if math.Abs(sum-table.Total) > 1e-9 {
		t.Errorf("Expected frequencies sum to %.6f, want %.0f", sum, table.Total)
	}
}

func TestChiSquareTest_KnownValue(t *testing.T) {
	// 2x2 table [[20,10],[10,20]]: n(ad-bc)²/(r1 r2 c1 c2) =
	// 60*(400-100)²/30⁴ = 6.6667.
	rows, cols := buildVectors([2][2]int{{20, 10}, {10, 20}}, [2]string{"fast_first", "slow_first"}, [2]string{"0", "14000"})

	table, err := Crosstab(rows, cols)
	if err != nil {
		t.Fatalf("Crosstab failed: %v", err)
	}
	result, err := ChiSquareTest(table)
	if err != nil {
		t.Fatalf("ChiSquareTest failed: %v", err)
	}

	if math.Abs(result.Statistic-6.6667) > 1e-3 {
		t.Errorf("Expected statistic 6.6667, got %.4f", result.Statistic)
	}
	if result.DF != 1 {
		t.Errorf("Expected 1 degree of freedom, got %d", result.DF)
	}
	if math.Abs(result.PValue-0.0098) > 5e-4 {
		t.Errorf("Expected p near 0.0098, got %.4f", result.PValue)
	}
	if !result.Significant(0.05) {
		t.Error("Test should reject independence at 0.05")
	}
	if result.N != 60 {
		t.Errorf("Expected n=60, got %d", result.N)
	}

	// Cramér's V for a 2x2 table is sqrt(X²/n).
	wantV := math.Sqrt(result.Statistic / 60)
	if math.Abs(result.CramersV-wantV) > 1e-9 {
		t.Errorf("Expected Cramér's V %.4f, got %.4f", wantV, result.CramersV)
	}
}

func TestChiSquareTest_IndependentTableNotSignificant(t *testing.T) {
	// Perfectly proportional rows carry no association.
	rows, cols := buildVectors([2][2]int{{30, 30}, {15, 15}}, [2]string{"a", "b"}, [2]string{"x", "y"})

	table, err := Crosstab(rows, cols)
	if err != nil {
		t.Fatalf("Crosstab failed: %v", err)
	}
	result, err := ChiSquareTest(table)
	if err != nil {
		t.Fatalf("ChiSquareTest failed: %v", err)
	}

	if result.Statistic > 1e-9 {
		t.Errorf("Expected zero statistic for proportional table, got %.6f", result.Statistic)
	}
	if result.Significant(0.05) {
		t.Error("Proportional table should not be significant")
	}
}

func TestChiSquareTest_DegenerateSingleLevel(t *testing.T) {
	// One outcome level only: the test is undefined, not an abort.
	rows := repeat("fast_first", 40)
	cols := append(repeat("0", 20), repeat("14000", 20)...)

	table, err := Crosstab(rows, cols)
	if err != nil {
		t.Fatalf("Crosstab failed: %v", err)
	}
	if !table.IsDegenerate() {
		t.Fatal("Single-level table should be degenerate")
	}

	_, err = ChiSquareTest(table)
	if err == nil {
		t.Fatal("Expected an error for a degenerate table")
	}
	if errors.GetCode(err) != errors.CodeDegenerateTest {
		t.Errorf("Expected DEGENERATE_TEST code, got %s", errors.GetCode(err))
	}
}

func TestCrosstab_LengthMismatch(t *testing.T) {
	_, err := Crosstab([]string{"a", "b"}, []string{"x"})
	if err == nil {
		t.Fatal("Expected an error for mismatched vector lengths")
	}
}

func TestCrosstab_LevelsSorted(t *testing.T) {
	rows := []string{"b", "a", "b", "a"}
	cols := []string{"y", "x", "x", "y"}

	table, err := Crosstab(rows, cols)
	if err != nil {
		t.Fatalf("Crosstab failed: %v", err)
	}
	if table.RowLevels[0] != "a" || table.RowLevels[1] != "b" {
		t.Errorf("Row levels not sorted: %v", table.RowLevels)
	}
	if table.ColLevels[0] != "x" || table.ColLevels[1] != "y" {
		t.Errorf("Col levels not sorted: %v", table.ColLevels)
	}
}
