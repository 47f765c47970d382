package stats

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leibatt/latency-visual-search/internal/analysis"
	"github.com/leibatt/latency-visual-search/internal/errors"
)

// AUC computes the area under the ROC curve by the rank-sum identity,
// with midranks for tied scores. labels are 0/1 with 1 the positive
// class.
func AUC(scores []float64, labels []int) float64 {
	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	// Midranks over tied score runs.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[order[j]] == scores[order[i]] {
			j++
		}
		mid := float64(i+j+1) / 2 // average of ranks i+1..j
		for k := i; k < j; k++ {
			ranks[order[k]] = mid
		}
		i = j
	}

	nPos, nNeg := 0, 0
	rankSum := 0.0
	for i, l := range labels {
		if l == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return math.NaN()
	}
	return (rankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}

// CPGrid builds a log-spaced complexity-parameter grid of the given
// size, spanning [0.0005, 0.2].
func CPGrid(size int) []float64 {
	if size < 1 {
		size = 1
	}
	if size == 1 {
		return []float64{0.01}
	}
	lo, hi := math.Log(0.0005), math.Log(0.2)
	grid := make([]float64, size)
	for i := range grid {
		frac := float64(i) / float64(size-1)
		grid[i] = math.Exp(lo + frac*(hi-lo))
	}
	return grid
}

// CVOptions configures cross-validated complexity-parameter selection.
type CVOptions struct {
	Folds int       // default 10
	Seed  int64     // fold assignment seed
	Grid  []float64 // cp candidates; default CPGrid(10)
	Tree  TreeOptions
}

// CVResult summarizes one cp candidate across folds.
type CVResult struct {
	CP       float64   `json:"cp"`
	MeanAUC  float64   `json:"mean_auc"`
	FoldAUCs []float64 `json:"fold_aucs"`
}

// SelectCP runs k-fold cross-validation over the cp grid and returns the
// per-candidate summaries plus the cp maximizing mean ROC AUC. Candidates
// are evaluated concurrently; fold assignment is fixed up front so the
// result is deterministic regardless of scheduling.
func SelectCP(ctx context.Context, ts *TrainingSet, opts CVOptions) ([]CVResult, float64, error) {
	if opts.Folds <= 1 {
		opts.Folds = 10
	}
	if len(opts.Grid) == 0 {
		opts.Grid = CPGrid(10)
	}
	if ts.Len() < 2*opts.Folds {
		return nil, 0, errors.InvalidInput("too few rows for cross-validation")
	}

	folds, err := analysis.NewPartitioner(opts.Seed).AssignFolds(ts.Len(), opts.Folds)
	if err != nil {
		return nil, 0, errors.Wrap(err, "fold assignment failed")
	}

	trainSets := make([]*TrainingSet, opts.Folds)
	testSets := make([]*TrainingSet, opts.Folds)
	testLabels := make([][]int, opts.Folds)
	for f := 0; f < opts.Folds; f++ {
		var trainIdx, testIdx []int
		for i, fold := range folds {
			if fold == f {
				testIdx = append(testIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}
		trainSets[f] = ts.Subset(trainIdx)
		testSets[f] = ts.Subset(testIdx)
		labels := make([]int, len(testIdx))
		for i, idx := range testIdx {
			if ts.Labels[idx] == ts.Levels[1] {
				labels[i] = 1
			}
		}
		testLabels[f] = labels
	}

	results := make([]CVResult, len(opts.Grid))
	g, _ := errgroup.WithContext(ctx)
	for ci, cp := range opts.Grid {
		g.Go(func() error {
			treeOpts := opts.Tree
			treeOpts.CP = cp

			foldAUCs := make([]float64, 0, opts.Folds)
			for f := 0; f < opts.Folds; f++ {
				tree, err := GrowTree(trainSets[f], treeOpts)
				if err != nil {
					return errors.Wrapf(err, "cp=%.4g fold=%d", cp, f)
				}
				scores := make([]float64, testSets[f].Len())
				for i := range scores {
					scores[i] = tree.PredictProb(testSets[f], i)
				}
				auc := AUC(scores, testLabels[f])
				if !math.IsNaN(auc) {
					foldAUCs = append(foldAUCs, auc)
				}
			}

			mean := math.NaN()
			if len(foldAUCs) > 0 {
				sum := 0.0
				for _, a := range foldAUCs {
					sum += a
				}
				mean = sum / float64(len(foldAUCs))
			}
			results[ci] = CVResult{CP: cp, MeanAUC: mean, FoldAUCs: foldAUCs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	bestCP := math.NaN()
	bestAUC := math.Inf(-1)
	for _, r := range results {
		if !math.IsNaN(r.MeanAUC) && r.MeanAUC > bestAUC {
			bestAUC = r.MeanAUC
			bestCP = r.CP
		}
	}
	if math.IsNaN(bestCP) {
		return results, 0, errors.ModelFit("no cp candidate produced a defined ROC summary")
	}
	return results, bestCP, nil
}
