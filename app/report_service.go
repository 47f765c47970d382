package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/domain/trial"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/analysis"
	"github.com/leibatt/latency-visual-search/internal/config"
	"github.com/leibatt/latency-visual-search/internal/errors"
	"github.com/leibatt/latency-visual-search/internal/stats"
	"github.com/leibatt/latency-visual-search/ports"
)

// ReportService runs the full analysis: the categorical independence
// tests on the pilot dataset, the logistic regression on the continuous
// dataset, and the cross-validated classification tree. The three blocks
// run in order; only the complexity-parameter search inside the tree
// block fans out.
type ReportService struct {
	cfg    *config.Config
	log    *internal.Logger
	reader ports.DatasetReader
	runs   ports.RunRepository // nil disables persistence
}

// NewReportService creates the report service.
func NewReportService(cfg *config.Config, log *internal.Logger, reader ports.DatasetReader, runs ports.RunRepository) *ReportService {
	return &ReportService{cfg: cfg, log: log, reader: reader, runs: runs}
}

// Run loads both configured datasets, generates the artifacts, and
// persists the run when a repository is wired.
func (s *ReportService) Run(ctx context.Context) (*Artifacts, error) {
	pilot, err := s.reader.Read(ctx, s.cfg.Data.PilotFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load pilot dataset")
	}
	continuous, err := s.reader.Read(ctx, s.cfg.Data.ContinuousFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load continuous dataset")
	}

	artifacts, err := s.Generate(ctx, pilot, continuous)
	if err != nil {
		return nil, err
	}

	if s.runs != nil {
		if err := s.persist(ctx, artifacts); err != nil {
			// The report itself is complete; a dead run log is not fatal.
			s.log.Warn("failed to persist run %s: %v", artifacts.RunID, err)
		}
	}
	return artifacts, nil
}

// Generate produces the complete artifact set from already-loaded
// datasets. The result is deterministic for a fixed seed and inputs,
// apart from the run id and timestamp.
func (s *ReportService) Generate(ctx context.Context, pilot, continuous *trial.Dataset) (*Artifacts, error) {
	artifacts := &Artifacts{
		RunID:                 core.RunID(core.NewID()),
		Seed:                  s.cfg.Analysis.Seed,
		GeneratedAt:           core.Now(),
		PilotFingerprint:      pilot.Fingerprint,
		ContinuousFingerprint: continuous.Fingerprint,
		Summaries:             analysis.SummarizeConditions(pilot),
	}

	s.log.Info("analysis run %s: pilot n=%d, continuous n=%d, seed=%d",
		artifacts.RunID, pilot.Len(), continuous.Len(), artifacts.Seed)

	s.runPilotBlock(pilot, artifacts)

	if err := s.runRegressionBlock(continuous, artifacts); err != nil {
		return nil, err
	}
	if err := s.runTreeBlock(ctx, continuous, artifacts); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// runPilotBlock computes the categorical independence tests: outcome
// against latency bucket per condition, outcome against strategy, and
// strategy switching against condition. Degenerate tables are recorded
// as undefined tests, never as failures.
func (s *ReportService) runPilotBlock(pilot *trial.Dataset, artifacts *Artifacts) {
	for _, c := range trial.Conditions {
		sub := pilot.FilterCondition(c)
		if sub.Len() == 0 {
			continue
		}
		test := s.independenceTest(
			fmt.Sprintf("outcome vs latency (%s)", c),
			"outcome", "latency_bucket",
			sub.OutcomeLabels(), sub.LatencyBucketLabels(),
		)
		artifacts.PilotBlocks = append(artifacts.PilotBlocks, PilotBlock{
			Condition: c,
			N:         sub.Len(),
			Test:      test,
		})
	}

	artifacts.StrategyTest = s.independenceTest(
		"outcome vs strategy",
		"outcome", "strategy",
		pilot.OutcomeLabels(), pilot.StrategyLabels(),
	)
	artifacts.SwitchTest = s.independenceTest(
		"strategy switch vs condition",
		"switch", "condition",
		pilot.SwitchLabels(), pilot.ConditionLabels(),
	)
}

// runRegressionBlock fits the binomial logistic regression of the binary
// outcome on continuous latency and evaluates the fitted curve over the
// full latency range.
func (s *ReportService) runRegressionBlock(continuous *trial.Dataset, artifacts *Artifacts) error {
	latencies := continuous.Latencies()
	outcomes := continuous.Outcomes()

	fit, err := stats.FitLogistic(latencies, outcomes, stats.LogitOptions{
		RareThreshold: s.cfg.Analysis.RareThreshold,
	})
	if err != nil {
		return errors.Wrap(err, "logistic regression failed")
	}
	s.log.Info("logistic fit (%s): slope=%.6g, p=%.4g, %d iterations",
		fit.Method, fit.Coef[1], fit.P[1], fit.Iterations)

	artifacts.Regression = RegressionBlock{
		Fit:          fit,
		Curve:        fit.Curve(0, trial.MaxLatencyMS, s.cfg.Analysis.CurvePoints),
		RugLatencies: latencies,
		RugOutcomes:  outcomes,
	}
	return nil
}

// runTreeBlock trains the classification tree on a seeded train split,
// selects the complexity parameter by cross-validated ROC AUC, and
// scores the pruned tree on the held-out test split.
func (s *ReportService) runTreeBlock(ctx context.Context, continuous *trial.Dataset, artifacts *Artifacts) error {
	full, err := trainingSet(continuous)
	if err != nil {
		return errors.Wrap(err, "failed to build tree training set")
	}

	partitioner := analysis.NewPartitioner(s.cfg.Analysis.Seed)
	split, err := partitioner.TrainTestSplit(full.Len(), s.cfg.Analysis.TrainRatio)
	if err != nil {
		return errors.Wrap(err, "train/test split failed")
	}
	train := full.Subset(split.Train)
	test := full.Subset(split.Test)

	cvResults, bestCP, err := stats.SelectCP(ctx, train, stats.CVOptions{
		Folds: s.cfg.Analysis.CVFolds,
		Seed:  s.cfg.Analysis.Seed,
		Grid:  stats.CPGrid(s.cfg.Analysis.CPGridSize),
	})
	if err != nil {
		return errors.Wrap(err, "complexity-parameter selection failed")
	}
	s.log.Info("selected cp=%.4g over %d candidates", bestCP, len(cvResults))

	tree, err := stats.GrowTree(train, stats.TreeOptions{CP: bestCP})
	if err != nil {
		return errors.Wrap(err, "tree fit failed")
	}
	confusion, err := stats.Evaluate(tree, test)
	if err != nil {
		return errors.Wrap(err, "tree evaluation failed")
	}

	artifacts.Tree = TreeBlock{
		CVResults:  cvResults,
		SelectedCP: bestCP,
		Rendered:   tree.String(),
		NodeCount:  tree.NodeCount(),
		Confusion:  confusion,
		Accuracy:   confusion.Accuracy(),
		TrainN:     train.Len(),
		TestN:      test.Len(),
	}
	return nil
}

// trainingSet assembles the tree predictors from a dataset: continuous
// latency, interaction count, condition, and strategy.
func trainingSet(d *trial.Dataset) (*stats.TrainingSet, error) {
	ts, err := stats.NewTrainingSet(d.OutcomeLabels(), trial.OutcomeFastFirst)
	if err != nil {
		return nil, err
	}
	if err := ts.AddNumeric("latency_ms", d.Latencies()); err != nil {
		return nil, err
	}
	if err := ts.AddNumeric("total_interactions", d.InteractionCounts()); err != nil {
		return nil, err
	}
	if err := ts.AddCategorical("condition", d.ConditionLabels()); err != nil {
		return nil, err
	}
	if err := ts.AddCategorical("search_strategy", d.StrategyLabels()); err != nil {
		return nil, err
	}
	return ts, nil
}

// independenceTest runs one chi-squared test, folding degenerate tables
// into an undefined result instead of an error.
func (s *ReportService) independenceTest(name, outcome, factor string, rows, cols []string) IndependenceTest {
	test := IndependenceTest{Name: name, Outcome: outcome, Factor: factor}

	table, err := stats.Crosstab(rows, cols)
	if err != nil {
		test.Undefined = true
		test.Reason = err.Error()
		s.log.Warn("%s: %v", name, err)
		return test
	}

	result, err := stats.ChiSquareTest(table)
	if err != nil {
		test.Undefined = true
		if errors.GetCode(err) == errors.CodeDegenerateTest {
			test.Reason = "test undefined: contingency table is degenerate"
		} else {
			test.Reason = err.Error()
		}
		s.log.Warn("%s: %s", name, test.Reason)
		return test
	}

	test.Result = result
	if result.Significant(s.cfg.Analysis.Alpha) {
		s.log.Info("%s: chi2=%.4f, df=%d, p=%.4g (significant at %.2g)",
			name, result.Statistic, result.DF, result.PValue, s.cfg.Analysis.Alpha)
	} else {
		s.log.Debug("%s: chi2=%.4f, df=%d, p=%.4g",
			name, result.Statistic, result.DF, result.PValue)
	}
	return test
}

// persist writes the run record with the full artifacts as JSON.
func (s *ReportService) persist(ctx context.Context, artifacts *Artifacts) error {
	payload, err := json.Marshal(artifacts)
	if err != nil {
		return errors.Wrap(err, "failed to encode artifacts")
	}
	return s.runs.Save(ctx, &ports.RunRecord{
		ID:                    artifacts.RunID,
		Seed:                  artifacts.Seed,
		PilotFingerprint:      artifacts.PilotFingerprint,
		ContinuousFingerprint: artifacts.ContinuousFingerprint,
		Results:               payload,
		CreatedAt:             artifacts.GeneratedAt,
	})
}
