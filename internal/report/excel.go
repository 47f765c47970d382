package report

import (
	"github.com/xuri/excelize/v2"

	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal/errors"
)

// Workbook builds an XLSX workbook holding the result tables: condition
// summaries, every independence test, the regression coefficients, and
// the tree selection plus its confusion matrix.
func Workbook(a *app.Artifacts) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeSummarySheet(f, a); err != nil {
		return nil, err
	}
	if err := writeTestsSheet(f, a); err != nil {
		return nil, err
	}
	if err := writeRegressionSheet(f, a); err != nil {
		return nil, err
	}
	if err := writeTreeSheet(f, a); err != nil {
		return nil, err
	}

	// Drop the default sheet created by NewFile.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "failed to drop default sheet")
	}
	idx, err := f.GetSheetIndex("Summary")
	if err != nil {
		return nil, errors.Wrap(err, "failed to locate summary sheet")
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// SaveWorkbook builds the workbook and writes it to path.
func SaveWorkbook(path string, a *app.Artifacts) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", path)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, a *app.Artifacts) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create summary sheet")
	}

	meta := [][]interface{}{
		{"Run", a.RunID.String()},
		{"Generated", a.GeneratedAt.Time().Format("2006-01-02 15:04:05")},
		{"Seed", a.Seed},
		{"Pilot fingerprint", a.PilotFingerprint.String()},
		{"Continuous fingerprint", a.ContinuousFingerprint.String()},
	}
	row := 1
	for _, pair := range meta {
		if err := setRow(f, sheet, row, pair); err != nil {
			return err
		}
		row++
	}
	row++

	header := []interface{}{"Condition", "Trials", "Fast-first rate", "Switch rate",
		"Latency mean", "Latency sd", "Latency median", "Interactions median"}
	if err := setRow(f, sheet, row, header); err != nil {
		return err
	}
	row++
	for _, s := range a.Summaries {
		values := []interface{}{string(s.Condition), s.Trials, s.FastFirstRate, s.SwitchRate,
			s.Latency.Mean, s.Latency.StdDev, s.Latency.Median, s.Interactions.Median}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeTestsSheet(f *excelize.File, a *app.Artifacts) error {
	const sheet = "Chi-Squared"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create chi-squared sheet")
	}

	header := []interface{}{"Test", "Statistic", "df", "p", "Cramer's V", "n", "Status"}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	tests := make([]app.IndependenceTest, 0, len(a.PilotBlocks)+2)
	for _, block := range a.PilotBlocks {
		tests = append(tests, block.Test)
	}
	tests = append(tests, a.StrategyTest, a.SwitchTest)

	row := 2
	for _, t := range tests {
		var values []interface{}
		if t.Undefined {
			values = []interface{}{t.Name, nil, nil, nil, nil, nil, "undefined: " + t.Reason}
		} else {
			r := t.Result
			values = []interface{}{t.Name, r.Statistic, r.DF, r.PValue, r.CramersV, r.N, "ok"}
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeRegressionSheet(f *excelize.File, a *app.Artifacts) error {
	const sheet = "Regression"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create regression sheet")
	}

	fit := a.Regression.Fit
	meta := [][]interface{}{
		{"Method", fit.Method},
		{"N", fit.N},
		{"Minority fraction", fit.MinorityFraction},
		{"Log-likelihood", fit.LogLik},
		{"Iterations", fit.Iterations},
		{"Converged", fit.Converged},
	}
	row := 1
	for _, pair := range meta {
		if err := setRow(f, sheet, row, pair); err != nil {
			return err
		}
		row++
	}
	row++

	if err := setRow(f, sheet, row, []interface{}{"Term", "Estimate", "SE", "z", "p"}); err != nil {
		return err
	}
	row++
	for i, term := range fit.Terms {
		values := []interface{}{term, fit.Coef[i], fit.SE[i], fit.Z[i], fit.P[i]}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeTreeSheet(f *excelize.File, a *app.Artifacts) error {
	const sheet = "Tree"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create tree sheet")
	}

	t := a.Tree
	meta := [][]interface{}{
		{"Selected cp", t.SelectedCP},
		{"Nodes", t.NodeCount},
		{"Train n", t.TrainN},
		{"Test n", t.TestN},
		{"Accuracy", t.Accuracy},
	}
	row := 1
	for _, pair := range meta {
		if err := setRow(f, sheet, row, pair); err != nil {
			return err
		}
		row++
	}
	row++

	if err := setRow(f, sheet, row, []interface{}{"cp", "Mean AUC", "Folds"}); err != nil {
		return err
	}
	row++
	for _, r := range t.CVResults {
		if err := setRow(f, sheet, row, []interface{}{r.CP, r.MeanAUC, len(r.FoldAUCs)}); err != nil {
			return err
		}
		row++
	}
	row++

	c := t.Confusion
	if err := setRow(f, sheet, row, []interface{}{"actual \\ predicted", c.Levels[0], c.Levels[1]}); err != nil {
		return err
	}
	row++
	for i := 0; i < 2; i++ {
		values := []interface{}{c.Levels[i], c.Counts[i][0], c.Counts[i][1]}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return errors.Wrap(err, "invalid cell coordinates")
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return errors.Wrapf(err, "failed to set %s!%s", sheet, cell)
		}
	}
	return nil
}
