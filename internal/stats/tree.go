package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

// FeatureKind distinguishes numeric from categorical predictors.
type FeatureKind int

const (
	FeatureNumeric FeatureKind = iota
	FeatureCategorical
)

// Feature describes one predictor column of a training set.
type Feature struct {
	Name string
	Kind FeatureKind
}

// TrainingSet holds a mixed categorical/continuous predictor table with a
// binary class label. Column order is the order features were added.
type TrainingSet struct {
	Features    []Feature
	Numeric     map[string][]float64
	Categorical map[string][]string
	Labels      []string
	Levels      [2]string // Levels[1] is the positive class
}

// NewTrainingSet creates a training set from labels with exactly two
// named levels; positive names the class scored by ROC.
func NewTrainingSet(labels []string, positive string) (*TrainingSet, error) {
	if len(labels) == 0 {
		return nil, errors.InvalidInput("empty label vector")
	}
	seen := map[string]bool{}
	for _, l := range labels {
		seen[l] = true
	}
	if len(seen) != 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("class label must have exactly two levels, got %d", len(seen)))
	}
	if !seen[positive] {
		return nil, errors.InvalidInput(fmt.Sprintf("positive level %q not present in labels", positive))
	}
	var negative string
	for l := range seen {
		if l != positive {
			negative = l
		}
	}

	copied := make([]string, len(labels))
	copy(copied, labels)
	return &TrainingSet{
		Numeric:     map[string][]float64{},
		Categorical: map[string][]string{},
		Labels:      copied,
		Levels:      [2]string{negative, positive},
	}, nil
}

// AddNumeric adds a continuous predictor column.
func (ts *TrainingSet) AddNumeric(name string, values []float64) error {
	if len(values) != len(ts.Labels) {
		return errors.InvalidInput(fmt.Sprintf("column %q has %d values, want %d", name, len(values), len(ts.Labels)))
	}
	copied := make([]float64, len(values))
	copy(copied, values)
	ts.Features = append(ts.Features, Feature{Name: name, Kind: FeatureNumeric})
	ts.Numeric[name] = copied
	return nil
}

// AddCategorical adds a categorical predictor column.
func (ts *TrainingSet) AddCategorical(name string, values []string) error {
	if len(values) != len(ts.Labels) {
		return errors.InvalidInput(fmt.Sprintf("column %q has %d values, want %d", name, len(values), len(ts.Labels)))
	}
	copied := make([]string, len(values))
	copy(copied, values)
	ts.Features = append(ts.Features, Feature{Name: name, Kind: FeatureCategorical})
	ts.Categorical[name] = copied
	return nil
}

// Len returns the number of rows.
func (ts *TrainingSet) Len() int {
	return len(ts.Labels)
}

// Subset returns a new training set holding the given rows.
func (ts *TrainingSet) Subset(indices []int) *TrainingSet {
	sub := &TrainingSet{
		Features:    ts.Features,
		Numeric:     map[string][]float64{},
		Categorical: map[string][]string{},
		Labels:      make([]string, len(indices)),
		Levels:      ts.Levels,
	}
	for name, col := range ts.Numeric {
		picked := make([]float64, len(indices))
		for i, idx := range indices {
			picked[i] = col[idx]
		}
		sub.Numeric[name] = picked
	}
	for name, col := range ts.Categorical {
		picked := make([]string, len(indices))
		for i, idx := range indices {
			picked[i] = col[idx]
		}
		sub.Categorical[name] = picked
	}
	for i, idx := range indices {
		sub.Labels[i] = ts.Labels[idx]
	}
	return sub
}

// TreeOptions configures recursive-partitioning growth.
type TreeOptions struct {
	CP        float64 // complexity parameter: minimum risk reduction relative to root risk
	MinSplit  int     // minimum node size eligible for splitting, default 20
	MinBucket int     // minimum leaf size, default MinSplit/3
	MaxDepth  int     // default 30
}

func (o TreeOptions) withDefaults() TreeOptions {
	if o.MinSplit <= 0 {
		o.MinSplit = 20
	}
	if o.MinBucket <= 0 {
		o.MinBucket = o.MinSplit / 3
		if o.MinBucket < 1 {
			o.MinBucket = 1
		}
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 30
	}
	return o
}

// TreeNode is one node of a fitted classification tree.
type TreeNode struct {
	// Split definition; empty Feature marks a leaf.
	Feature    string
	Kind       FeatureKind
	Threshold  float64         // numeric: left if value < Threshold
	LeftLevels map[string]bool // categorical: left if level in set

	Left  *TreeNode
	Right *TreeNode

	// Node statistics.
	NSamples   int
	Positive   int     // positive-class count in node
	Impurity   float64 // Gini
	Prediction string
	Prob       float64 // positive-class proportion
}

// IsLeaf reports whether the node has no split.
func (n *TreeNode) IsLeaf() bool {
	return n.Feature == ""
}

// Tree is a fitted CART classifier.
type Tree struct {
	Root    *TreeNode
	Levels  [2]string
	Options TreeOptions
}

// GrowTree fits a classification tree by recursive partitioning with
// Gini impurity. A split is kept only when it reduces node risk by at
// least CP times the root risk.
func GrowTree(ts *TrainingSet, opts TreeOptions) (*Tree, error) {
	opts = opts.withDefaults()
	if ts.Len() == 0 {
		return nil, errors.InvalidInput("empty training set")
	}
	if len(ts.Features) == 0 {
		return nil, errors.InvalidInput("no predictor columns")
	}

	all := make([]int, ts.Len())
	for i := range all {
		all[i] = i
	}

	rootPos := countPositive(ts, all)
	rootRisk := float64(len(all)) * gini(rootPos, len(all))

	root := grow(ts, all, opts, rootRisk, 0)
	return &Tree{Root: root, Levels: ts.Levels, Options: opts}, nil
}

func grow(ts *TrainingSet, idx []int, opts TreeOptions, rootRisk float64, depth int) *TreeNode {
	pos := countPositive(ts, idx)
	n := len(idx)
	node := &TreeNode{
		NSamples: n,
		Positive: pos,
		Impurity: gini(pos, n),
		Prob:     float64(pos) / float64(n),
	}
	node.Prediction = ts.Levels[0]
	if 2*pos >= n {
		node.Prediction = ts.Levels[1]
	}

	if pos == 0 || pos == n || n < opts.MinSplit || depth >= opts.MaxDepth {
		return node
	}

	split := bestSplit(ts, idx, opts)
	if split == nil {
		return node
	}

	// rpart-style complexity gate: the split must buy at least CP of the
	// root risk.
	nodeRisk := float64(n) * node.Impurity
	leftRisk := float64(len(split.left)) * gini(countPositive(ts, split.left), len(split.left))
	rightRisk := float64(len(split.right)) * gini(countPositive(ts, split.right), len(split.right))
	if rootRisk > 0 && (nodeRisk-leftRisk-rightRisk) < opts.CP*rootRisk {
		return node
	}

	node.Feature = split.feature.Name
	node.Kind = split.feature.Kind
	node.Threshold = split.threshold
	node.LeftLevels = split.leftLevels
	node.Left = grow(ts, split.left, opts, rootRisk, depth+1)
	node.Right = grow(ts, split.right, opts, rootRisk, depth+1)
	return node
}

type candidateSplit struct {
	feature    Feature
	threshold  float64
	leftLevels map[string]bool
	left       []int
	right      []int
	risk       float64 // weighted child impurity
}

// bestSplit searches all features for the partition with the lowest
// weighted child impurity, respecting MinBucket.
func bestSplit(ts *TrainingSet, idx []int, opts TreeOptions) *candidateSplit {
	var best *candidateSplit
	for _, f := range ts.Features {
		var cand *candidateSplit
		switch f.Kind {
		case FeatureNumeric:
			cand = bestNumericSplit(ts, idx, f, opts)
		case FeatureCategorical:
			cand = bestCategoricalSplit(ts, idx, f, opts)
		}
		if cand != nil && (best == nil || cand.risk < best.risk) {
			best = cand
		}
	}
	return best
}

func bestNumericSplit(ts *TrainingSet, idx []int, f Feature, opts TreeOptions) *candidateSplit {
	col := ts.Numeric[f.Name]

	ordered := make([]int, len(idx))
	copy(ordered, idx)
	sort.Slice(ordered, func(a, b int) bool { return col[ordered[a]] < col[ordered[b]] })

	n := len(ordered)
	totalPos := countPositive(ts, ordered)

	var best *candidateSplit
	leftPos := 0
	for i := 0; i < n-1; i++ {
		if isPositive(ts, ordered[i]) {
			leftPos++
		}
		if col[ordered[i]] == col[ordered[i+1]] {
			continue // no boundary between tied values
		}
		nl := i + 1
		nr := n - nl
		if nl < opts.MinBucket || nr < opts.MinBucket {
			continue
		}
		risk := float64(nl)*gini(leftPos, nl) + float64(nr)*gini(totalPos-leftPos, nr)
		if best == nil || risk < best.risk {
			best = &candidateSplit{
				feature:   f,
				threshold: (col[ordered[i]] + col[ordered[i+1]]) / 2,
				left:      append([]int(nil), ordered[:nl]...),
				right:     append([]int(nil), ordered[nl:]...),
				risk:      risk,
			}
		}
	}
	return best
}

// bestCategoricalSplit orders levels by positive-class proportion and
// scans prefix subsets, the CART reduction for binary targets.
func bestCategoricalSplit(ts *TrainingSet, idx []int, f Feature, opts TreeOptions) *candidateSplit {
	col := ts.Categorical[f.Name]

	type levelStat struct {
		level string
		n     int
		pos   int
	}
	byLevel := map[string]*levelStat{}
	for _, i := range idx {
		st, ok := byLevel[col[i]]
		if !ok {
			st = &levelStat{level: col[i]}
			byLevel[col[i]] = st
		}
		st.n++
		if isPositive(ts, i) {
			st.pos++
		}
	}
	if len(byLevel) < 2 {
		return nil
	}

	levels := make([]*levelStat, 0, len(byLevel))
	for _, st := range byLevel {
		levels = append(levels, st)
	}
	sort.Slice(levels, func(a, b int) bool {
		pa := float64(levels[a].pos) / float64(levels[a].n)
		pb := float64(levels[b].pos) / float64(levels[b].n)
		if pa != pb {
			return pa < pb
		}
		return levels[a].level < levels[b].level
	})

	n := len(idx)
	totalPos := countPositive(ts, idx)

	var best *candidateSplit
	leftN, leftPos := 0, 0
	inLeft := map[string]bool{}
	for cut := 0; cut < len(levels)-1; cut++ {
		leftN += levels[cut].n
		leftPos += levels[cut].pos
		inLeft[levels[cut].level] = true

		nr := n - leftN
		if leftN < opts.MinBucket || nr < opts.MinBucket {
			continue
		}
		risk := float64(leftN)*gini(leftPos, leftN) + float64(nr)*gini(totalPos-leftPos, nr)
		if best == nil || risk < best.risk {
			leftLevels := make(map[string]bool, len(inLeft))
			for l := range inLeft {
				leftLevels[l] = true
			}
			var left, right []int
			for _, i := range idx {
				if leftLevels[col[i]] {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			best = &candidateSplit{
				feature:    f,
				leftLevels: leftLevels,
				left:       left,
				right:      right,
				risk:       risk,
			}
		}
	}
	return best
}

// PredictProb returns the positive-class probability for row i of data.
func (t *Tree) PredictProb(data *TrainingSet, i int) float64 {
	node := t.Root
	for !node.IsLeaf() {
		goLeft := false
		switch node.Kind {
		case FeatureNumeric:
			goLeft = data.Numeric[node.Feature][i] < node.Threshold
		case FeatureCategorical:
			goLeft = node.LeftLevels[data.Categorical[node.Feature][i]]
		}
		if goLeft {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prob
}

// Predict returns the class label for row i of data.
func (t *Tree) Predict(data *TrainingSet, i int) string {
	if t.PredictProb(data, i) >= 0.5 {
		return t.Levels[1]
	}
	return t.Levels[0]
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	return countNodes(t.Root)
}

func countNodes(n *TreeNode) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.Left) + countNodes(n.Right)
}

// String renders the tree as an indented text diagram.
func (t *Tree) String() string {
	var b strings.Builder
	renderNode(&b, t.Root, "", "root")
	return b.String()
}

func renderNode(b *strings.Builder, n *TreeNode, indent, branch string) {
	if n.IsLeaf() {
		fmt.Fprintf(b, "%s%s -> %s (n=%d, p=%.3f)\n", indent, branch, n.Prediction, n.NSamples, n.Prob)
		return
	}
	switch n.Kind {
	case FeatureNumeric:
		fmt.Fprintf(b, "%s%s: %s < %.4g (n=%d)\n", indent, branch, n.Feature, n.Threshold, n.NSamples)
	case FeatureCategorical:
		levels := make([]string, 0, len(n.LeftLevels))
		for l := range n.LeftLevels {
			levels = append(levels, l)
		}
		sort.Strings(levels)
		fmt.Fprintf(b, "%s%s: %s in {%s} (n=%d)\n", indent, branch, n.Feature, strings.Join(levels, ","), n.NSamples)
	}
	renderNode(b, n.Left, indent+"  ", "yes")
	renderNode(b, n.Right, indent+"  ", "no")
}

// Confusion is a 2x2 confusion matrix; rows are actual classes, columns
// predicted, in Levels order.
type Confusion struct {
	Levels [2]string `json:"levels"`
	Counts [2][2]int `json:"counts"`
}

// Accuracy returns the proportion of correct predictions.
func (c *Confusion) Accuracy() float64 {
	total := 0
	correct := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			total += c.Counts[i][j]
			if i == j {
				correct += c.Counts[i][j]
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// Total returns the number of scored observations.
func (c *Confusion) Total() int {
	total := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			total += c.Counts[i][j]
		}
	}
	return total
}

// Evaluate scores the tree on a held-out set.
func Evaluate(t *Tree, test *TrainingSet) (*Confusion, error) {
	if test.Levels != t.Levels {
		return nil, errors.InvalidInput("class levels of test set do not match the tree")
	}
	conf := &Confusion{Levels: t.Levels}
	for i := 0; i < test.Len(); i++ {
		actual := 0
		if test.Labels[i] == t.Levels[1] {
			actual = 1
		}
		predicted := 0
		if t.Predict(test, i) == t.Levels[1] {
			predicted = 1
		}
		conf.Counts[actual][predicted]++
	}
	return conf, nil
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func countPositive(ts *TrainingSet, idx []int) int {
	pos := 0
	for _, i := range idx {
		if isPositive(ts, i) {
			pos++
		}
	}
	return pos
}

func isPositive(ts *TrainingSet, i int) bool {
	return ts.Labels[i] == ts.Levels[1]
}
