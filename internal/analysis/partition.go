package analysis

import (
	"fmt"
	"math"
	"math/rand"
)

// Partitioner implements seeded sample splitting for statistical rigor.
// All assignments are deterministic for a fixed seed, so a report run is
// reproducible end to end.
type Partitioner struct {
	seed int64
}

// NewPartitioner creates a partitioner with a specific seed.
func NewPartitioner(seed int64) *Partitioner {
	return &Partitioner{seed: seed}
}

// Seed returns the seed the partitioner was built with.
func (p *Partitioner) Seed() int64 {
	return p.seed
}

// SplitResult holds a train/test partition as row indices into the
// source table.
type SplitResult struct {
	Train      []int
	Test       []int
	TrainRatio float64
	Seed       int64
}

// TrainTestSplit partitions n rows into train and test sets. Index order
// within each partition is shuffled but deterministic per seed.
func (p *Partitioner) TrainTestSplit(n int, trainRatio float64) (*SplitResult, error) {
	if n < 10 {
		return nil, fmt.Errorf("insufficient data for partitioning: need at least 10 rows, got %d", n)
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		trainRatio = 0.7
	}

	trainSize := int(math.Round(float64(n) * trainRatio))
	if trainSize < 5 || n-trainSize < 5 {
		return nil, fmt.Errorf("partition sizes too small: train=%d, test=%d (minimum 5 each)", trainSize, n-trainSize)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(p.seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return &SplitResult{
		Train:      indices[:trainSize],
		Test:       indices[trainSize:],
		TrainRatio: trainRatio,
		Seed:       p.seed,
	}, nil
}

// AssignFolds assigns each of n rows to one of k cross-validation folds.
// Fold sizes differ by at most one; assignment is deterministic per seed.
func (p *Partitioner) AssignFolds(n, k int) ([]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot assign %d rows to %d folds", n, k)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	// Distinct stream from TrainTestSplit so the two assignments are
	// independent for the same seed.
	rng := rand.New(rand.NewSource(p.seed + 1))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	folds := make([]int, n)
	for pos, idx := range indices {
		folds[idx] = pos % k
	}
	return folds, nil
}
