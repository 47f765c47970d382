package app

import (
	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/domain/trial"
	"github.com/leibatt/latency-visual-search/internal/analysis"
	"github.com/leibatt/latency-visual-search/internal/stats"
)

// IndependenceTest wraps one chi-squared test for the report. A
// degenerate table is rendered as "test undefined" instead of aborting
// the rest of the report.
type IndependenceTest struct {
	Name      string                 `json:"name"`
	Outcome   string                 `json:"outcome"`
	Factor    string                 `json:"factor"`
	Result    *stats.ChiSquareResult `json:"result,omitempty"`
	Undefined bool                   `json:"undefined"`
	Reason    string                 `json:"reason,omitempty"`
}

// PilotBlock holds the per-condition independence test of outcome
// against the discrete latency bucket.
type PilotBlock struct {
	Condition trial.Condition  `json:"condition"`
	N         int              `json:"n"`
	Test      IndependenceTest `json:"test"`
}

// RegressionBlock holds the continuous-latency logistic fit and the
// prediction grid used to draw the fitted curve with its ±2·SE band.
type RegressionBlock struct {
	Fit          *stats.LogitFit    `json:"fit"`
	Curve        []stats.CurvePoint `json:"curve"`
	RugLatencies []float64          `json:"rug_latencies"`
	RugOutcomes  []int              `json:"rug_outcomes"`
}

// TreeBlock holds the cross-validated tree selection and its held-out
// evaluation.
type TreeBlock struct {
	CVResults  []stats.CVResult `json:"cv_results"`
	SelectedCP float64          `json:"selected_cp"`
	Rendered   string           `json:"rendered"`
	NodeCount  int              `json:"node_count"`
	Confusion  *stats.Confusion `json:"confusion"`
	Accuracy   float64          `json:"accuracy"`
	TrainN     int              `json:"train_n"`
	TestN      int              `json:"test_n"`
}

// Artifacts is the complete output of one analysis run. It is a pure
// function of the two input datasets and the seed.
type Artifacts struct {
	RunID                 core.RunID                 `json:"run_id"`
	Seed                  int64                      `json:"seed"`
	GeneratedAt           core.Timestamp             `json:"generated_at"`
	PilotFingerprint      core.DatasetFingerprint    `json:"pilot_fingerprint"`
	ContinuousFingerprint core.DatasetFingerprint    `json:"continuous_fingerprint"`
	Summaries             []analysis.ConditionSummary `json:"summaries"`
	PilotBlocks           []PilotBlock               `json:"pilot_blocks"`
	StrategyTest          IndependenceTest           `json:"strategy_test"`
	SwitchTest            IndependenceTest           `json:"switch_test"`
	Regression            RegressionBlock            `json:"regression"`
	Tree                  TreeBlock                  `json:"tree"`
}
