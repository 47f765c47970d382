package stats

import (
	"context"
	"math"
	"testing"
)

func TestAUC_PerfectSeparation(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.8, 0.9, 0.95}
	labels := []int{0, 0, 0, 1, 1, 1}

	if auc := AUC(scores, labels); auc != 1.0 {
		t.Errorf("Expected AUC 1.0 for perfect separation, got %.4f", auc)
	}
}

func TestAUC_Reversed(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.7, 0.2, 0.1, 0.05}
	labels := []int{0, 0, 0, 1, 1, 1}

	if auc := AUC(scores, labels); auc != 0.0 {
		t.Errorf("Expected AUC 0.0 for reversed ranking, got %.4f", auc)
	}
}

func TestAUC_AllTiedScoresIsChance(t *testing.T) {
	scores := []float64{0.5, 0.5, 0.5, 0.5}
	labels := []int{0, 1, 0, 1}

	if auc := AUC(scores, labels); math.Abs(auc-0.5) > 1e-9 {
		t.Errorf("Expected AUC 0.5 for constant scores, got %.4f", auc)
	}
}

func TestAUC_SingleClassUndefined(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3}
	labels := []int{1, 1, 1}

	if auc := AUC(scores, labels); !math.IsNaN(auc) {
		t.Errorf("Expected NaN AUC with one class, got %.4f", auc)
	}
}

func TestCPGrid_BoundsAndOrder(t *testing.T) {
	grid := CPGrid(10)
	if len(grid) != 10 {
		t.Fatalf("Expected 10 candidates, got %d", len(grid))
	}
	if math.Abs(grid[0]-0.0005) > 1e-12 {
		t.Errorf("Grid should start at 0.0005, got %.6g", grid[0])
	}
	if math.Abs(grid[9]-0.2) > 1e-12 {
		t.Errorf("Grid should end at 0.2, got %.6g", grid[9])
	}
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			t.Fatalf("Grid not strictly increasing at %d", i)
		}
	}
}

func TestCPGrid_SingleCandidate(t *testing.T) {
	grid := CPGrid(1)
	if len(grid) != 1 || grid[0] != 0.01 {
		t.Errorf("Expected {0.01}, got %v", grid)
	}
}

func TestSelectCP_DeterministicAcrossRuns(t *testing.T) {
	ts := thresholdSet(t, 100)
	ctx := context.Background()

	opts := CVOptions{Folds: 5, Seed: 42, Grid: CPGrid(6)}

	resultsA, bestA, err := SelectCP(ctx, ts, opts)
	if err != nil {
		t.Fatalf("SelectCP failed: %v", err)
	}
	resultsB, bestB, err := SelectCP(ctx, ts, opts)
	if err != nil {
		t.Fatalf("SelectCP failed: %v", err)
	}

	if bestA != bestB {
		t.Errorf("Selected cp differs across runs: %.6g vs %.6g", bestA, bestB)
	}
	for i := range resultsA {
		if resultsA[i].MeanAUC != resultsB[i].MeanAUC {
			t.Errorf("Mean AUC differs at candidate %d: %.6f vs %.6f",
				i, resultsA[i].MeanAUC, resultsB[i].MeanAUC)
		}
	}
}

func TestSelectCP_SeparableDataScoresHighAUC(t *testing.T) {
	ts := thresholdSet(t, 100)

	results, bestCP, err := SelectCP(context.Background(), ts, CVOptions{Folds: 10, Seed: 7})
	if err != nil {
		t.Fatalf("SelectCP failed: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("Expected the default 10 candidates, got %d", len(results))
	}

	var best CVResult
	for _, r := range results {
		if r.CP == bestCP {
			best = r
		}
	}
	if best.MeanAUC < 0.95 {
		t.Errorf("Expected near-perfect AUC on separable data, got %.4f", best.MeanAUC)
	}
}

func TestSelectCP_TooFewRows(t *testing.T) {
	labels := []string{"a", "b", "a", "b"}
	ts, err := NewTrainingSet(labels, "a")
	if err != nil {
		t.Fatalf("NewTrainingSet failed: %v", err)
	}
	if err := ts.AddNumeric("x", []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("AddNumeric failed: %v", err)
	}

	if _, _, err := SelectCP(context.Background(), ts, CVOptions{Folds: 10, Seed: 1}); err == nil {
		t.Fatal("Expected an error with fewer rows than 2x folds")
	}
}
