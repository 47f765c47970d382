package app

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/domain/trial"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			Seed:          42,
			TrainRatio:    0.7,
			CVFolds:       5,
			CPGridSize:    4,
			RareThreshold: 0.15,
			CurvePoints:   50,
			Alpha:         0.05,
		},
	}
}

func testService() *ReportService {
	return NewReportService(testConfig(), internal.NewLogger(internal.LogLevelError), nil, nil)
}

// pilotTrials builds the categorical dataset. Experiment3 carries a
// strong outcome-by-latency association (the 2x2 table [[20,10],[10,20]]),
// Experiment1 carries none, and Experiment4 is degenerate with a single
// outcome level.
func pilotTrials(t *testing.T) *trial.Dataset {
	t.Helper()

	var trials []trial.Trial
	id := 0
	add := func(c trial.Condition, latency float64, fastFirst bool, strategy string, count int) {
		for i := 0; i < count; i++ {
			id++
			trials = append(trials, trial.Trial{
				Participant:          core.ParticipantID(fmt.Sprintf("p%03d", id)),
				Condition:            c,
				LatencyMS:            latency,
				FoundFastTargetFirst: fastFirst,
				Interactions:         3,
				Strategy:             strategy,
				SwitchedStrategy:     strategy == trial.StrategySwitch,
			})
		}
	}

	// Experiment3: association between latency level and outcome.
	add(trial.Experiment3, 0, true, "scan rows", 20)
	add(trial.Experiment3, 0, false, "scan rows", 10)
	add(trial.Experiment3, 14000, true, trial.StrategySwitch, 10)
	add(trial.Experiment3, 14000, false, trial.StrategySwitch, 20)

	// Experiment1: outcome independent of latency level.
	add(trial.Experiment1, 0, true, "scan rows", 15)
	add(trial.Experiment1, 0, false, "exhaustive scan", 15)
	add(trial.Experiment1, 14000, true, "scan rows", 15)
	add(trial.Experiment1, 14000, false, "exhaustive scan", 15)

	// Experiment4: every trial has the same outcome.
	add(trial.Experiment4, 0, true, "scan rows", 10)
	add(trial.Experiment4, 14000, true, "scan rows", 10)

	d, err := trial.NewDataset("pilot", trials)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	return d
}

// continuousTrials draws latencies over the full range with outcome odds
// falling in latency, deterministically.
func continuousTrials(t *testing.T) *trial.Dataset {
	t.Helper()

	state := uint64(1234)
	next := func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / float64(1<<53)
	}

	var trials []trial.Trial
	for i := 0; i < 300; i++ {
		latency := next() * 14000
		p := 1 / (1 + math.Exp(-(1.2 - 0.0003*latency)))
		fastFirst := next() < p

		strategy := "scan rows"
		if next() < 0.25 {
			strategy = trial.StrategySwitch
		}

		trials = append(trials, trial.Trial{
			Participant:          core.ParticipantID(fmt.Sprintf("c%03d", i)),
			Condition:            trial.Conditions[i%len(trial.Conditions)],
			LatencyMS:            latency,
			FoundFastTargetFirst: fastFirst,
			Interactions:         1 + i%7,
			Strategy:             strategy,
			SwitchedStrategy:     strategy == trial.StrategySwitch,
		})
	}

	d, err := trial.NewDataset("continuous", trials)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	return d
}

func TestGenerate_Experiment3Significant(t *testing.T) {
	artifacts, err := testService().Generate(context.Background(), pilotTrials(t), continuousTrials(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var exp3, exp1 *PilotBlock
	for i := range artifacts.PilotBlocks {
		switch artifacts.PilotBlocks[i].Condition {
		case trial.Experiment3:
			exp3 = &artifacts.PilotBlocks[i]
		case trial.Experiment1:
			exp1 = &artifacts.PilotBlocks[i]
		}
	}
	if exp3 == nil || exp1 == nil {
		t.Fatal("Expected pilot blocks for Experiment1 and Experiment3")
	}

	if exp3.Test.Undefined {
		t.Fatalf("Experiment3 test should be defined: %s", exp3.Test.Reason)
	}
	if math.Abs(exp3.Test.Result.Statistic-6.6667) > 1e-3 {
		t.Errorf("Expected Experiment3 statistic 6.6667, got %.4f", exp3.Test.Result.Statistic)
	}
	if !exp3.Test.Result.Significant(0.05) {
		t.Errorf("Experiment3 should reject independence, p=%.4g", exp3.Test.Result.PValue)
	}

	if exp1.Test.Undefined {
		t.Fatalf("Experiment1 test should be defined: %s", exp1.Test.Reason)
	}
	if exp1.Test.Result.Significant(0.05) {
		t.Errorf("Experiment1 should not reject independence, p=%.4g", exp1.Test.Result.PValue)
	}
}

func TestGenerate_DegenerateConditionIsUndefinedNotFatal(t *testing.T) {
	artifacts, err := testService().Generate(context.Background(), pilotTrials(t), continuousTrials(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var exp4 *PilotBlock
	for i := range artifacts.PilotBlocks {
		if artifacts.PilotBlocks[i].Condition == trial.Experiment4 {
			exp4 = &artifacts.PilotBlocks[i]
		}
	}
	if exp4 == nil {
		t.Fatal("Expected a pilot block for Experiment4")
	}
	if !exp4.Test.Undefined {
		t.Error("Single-outcome condition should yield an undefined test")
	}
	if exp4.Test.Result != nil {
		t.Error("Undefined test should carry no result")
	}
	if exp4.Test.Reason == "" {
		t.Error("Undefined test should carry a reason")
	}
}

func TestGenerate_RegressionBlock(t *testing.T) {
	artifacts, err := testService().Generate(context.Background(), pilotTrials(t), continuousTrials(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	fit := artifacts.Regression.Fit
	if fit == nil {
		t.Fatal("Expected a regression fit")
	}
	if fit.Coef[1] >= 0 {
		t.Errorf("Expected a negative latency slope, got %.6g", fit.Coef[1])
	}
	if len(artifacts.Regression.Curve) != 50 {
		t.Errorf("Expected 50 curve points, got %d", len(artifacts.Regression.Curve))
	}
	for _, pt := range artifacts.Regression.Curve {
		if pt.P < 0 || pt.P > 1 {
			t.Fatalf("Curve probability %.4f outside [0,1] at x=%.0f", pt.P, pt.X)
		}
	}
	if len(artifacts.Regression.RugLatencies) != 300 {
		t.Errorf("Expected 300 rug points, got %d", len(artifacts.Regression.RugLatencies))
	}
}

func TestGenerate_TreeBlock(t *testing.T) {
	artifacts, err := testService().Generate(context.Background(), pilotTrials(t), continuousTrials(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	tree := artifacts.Tree
	if len(tree.CVResults) != 4 {
		t.Errorf("Expected 4 cp candidates, got %d", len(tree.CVResults))
	}
	if tree.SelectedCP <= 0 {
		t.Errorf("Expected a positive selected cp, got %.6g", tree.SelectedCP)
	}
	if tree.TrainN+tree.TestN != 300 {
		t.Errorf("Train+test should cover all 300 rows, got %d", tree.TrainN+tree.TestN)
	}
	if tree.Confusion == nil || tree.Confusion.Total() != tree.TestN {
		t.Error("Confusion matrix should cover the held-out set")
	}
	if tree.Accuracy < 0 || tree.Accuracy > 1 {
		t.Errorf("Accuracy %.4f outside [0,1]", tree.Accuracy)
	}
	if tree.Rendered == "" || tree.NodeCount < 1 {
		t.Error("Expected a rendered tree with at least the root node")
	}
}

func TestGenerate_DeterministicForFixedSeed(t *testing.T) {
	pilot := pilotTrials(t)
	continuous := continuousTrials(t)

	a, err := testService().Generate(context.Background(), pilot, continuous)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := testService().Generate(context.Background(), pilot, continuous)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if a.RunID == b.RunID {
		t.Error("Each run should mint a fresh run id")
	}
	if a.PilotFingerprint != b.PilotFingerprint || a.ContinuousFingerprint != b.ContinuousFingerprint {
		t.Error("Fingerprints should match for identical inputs")
	}
	if a.Tree.SelectedCP != b.Tree.SelectedCP {
		t.Errorf("Selected cp differs: %.6g vs %.6g", a.Tree.SelectedCP, b.Tree.SelectedCP)
	}
	if a.Tree.Accuracy != b.Tree.Accuracy {
		t.Errorf("Held-out accuracy differs: %.4f vs %.4f", a.Tree.Accuracy, b.Tree.Accuracy)
	}
	if a.Regression.Fit.Coef[1] != b.Regression.Fit.Coef[1] {
		t.Error("Regression coefficients differ for identical inputs")
	}
}

func TestGenerate_SwitchTestUsesAllConditions(t *testing.T) {
	artifacts, err := testService().Generate(context.Background(), pilotTrials(t), continuousTrials(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if artifacts.SwitchTest.Undefined {
		t.Fatalf("Switch test should be defined: %s", artifacts.SwitchTest.Reason)
	}
	// Three conditions are present in the pilot data.
	if got := len(artifacts.SwitchTest.Result.ColLevels); got != 3 {
		t.Errorf("Expected 3 condition levels in the switch test, got %d", got)
	}
	if artifacts.StrategyTest.Undefined {
		t.Errorf("Strategy test should be defined: %s", artifacts.StrategyTest.Reason)
	}
}
