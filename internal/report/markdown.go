package report

import (
	"fmt"
	"strings"

	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal/stats"
)

// CurveImageFile is the file name the markdown report references for the
// fitted-curve figure; the plot writer must use the same name.
const CurveImageFile = "logistic_curve.png"

// Markdown renders the full analysis report as GitHub-flavored markdown.
func Markdown(title string, a *app.Artifacts) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run: `%s`\n", a.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", a.GeneratedAt.Time().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Seed: %d\n", a.Seed)
	fmt.Fprintf(&b, "- Pilot dataset: `%.12s`\n", a.PilotFingerprint)
	fmt.Fprintf(&b, "- Continuous dataset: `%.12s`\n\n", a.ContinuousFingerprint)

	writeSummaries(&b, a)
	writePilotTests(&b, a)
	writeRegression(&b, a)
	writeTree(&b, a)

	return b.String()
}

func writeSummaries(b *strings.Builder, a *app.Artifacts) {
	b.WriteString("## Condition summaries\n\n")
	b.WriteString("| Condition | Trials | Fast-first rate | Switch rate | Latency (mean ± sd) | Interactions (median) |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, s := range a.Summaries {
		fmt.Fprintf(b, "| %s | %d | %.3f | %.3f | %.1f ± %.1f ms | %.1f |\n",
			s.Condition, s.Trials, s.FastFirstRate, s.SwitchRate,
			s.Latency.Mean, s.Latency.StdDev, s.Interactions.Median)
	}
	b.WriteString("\n")
}

func writePilotTests(b *strings.Builder, a *app.Artifacts) {
	b.WriteString("## Independence tests (pilot)\n\n")
	for _, block := range a.PilotBlocks {
		fmt.Fprintf(b, "### %s, n=%d\n\n", block.Condition, block.N)
		writeTest(b, block.Test)
	}

	b.WriteString("### Outcome by strategy\n\n")
	writeTest(b, a.StrategyTest)

	b.WriteString("### Strategy switching by condition\n\n")
	writeTest(b, a.SwitchTest)
}

func writeTest(b *strings.Builder, t app.IndependenceTest) {
	if t.Undefined {
		fmt.Fprintf(b, "*%s vs %s: test undefined.* %s\n\n", t.Outcome, t.Factor, t.Reason)
		return
	}

	r := t.Result
	fmt.Fprintf(b, "Pearson chi-squared, %s vs %s: X² = %.4f, df = %d, p = %s, Cramér's V = %.3f, n = %d.\n\n",
		t.Outcome, t.Factor, r.Statistic, r.DF, formatP(r.PValue), r.CramersV, r.N)
	writeCounts(b, r)
}

func writeCounts(b *strings.Builder, r *stats.ChiSquareResult) {
	fmt.Fprintf(b, "| observed (expected) | %s |\n", strings.Join(r.ColLevels, " | "))
	b.WriteString("|---" + strings.Repeat("|---:", len(r.ColLevels)) + "|\n")
	for i, row := range r.RowLevels {
		cells := make([]string, len(r.ColLevels))
		for j := range r.ColLevels {
			cells[j] = fmt.Sprintf("%.0f (%.1f)", r.Observed[i][j], r.Expected[i][j])
		}
		fmt.Fprintf(b, "| %s | %s |\n", row, strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func writeRegression(b *strings.Builder, a *app.Artifacts) {
	fit := a.Regression.Fit

	b.WriteString("## Logistic regression (continuous latency)\n\n")
	fmt.Fprintf(b, "Binomial fit of fast-first outcome on latency, method `%s`, n = %d, minority fraction %.3f, log-likelihood %.3f, %d iterations%s.\n\n",
		fit.Method, fit.N, fit.MinorityFraction, fit.LogLik, fit.Iterations, convergedNote(fit.Converged))

	b.WriteString("| Term | Estimate | SE | z | p |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for i, term := range fit.Terms {
		fmt.Fprintf(b, "| %s | %.6g | %.6g | %.3f | %s |\n",
			term, fit.Coef[i], fit.SE[i], fit.Z[i], formatP(fit.P[i]))
	}
	fmt.Fprintf(b, "\n![Fitted probability of fast-first outcome by latency](%s)\n\n", CurveImageFile)
}

func convergedNote(converged bool) string {
	if converged {
		return ""
	}
	return " (did not converge)"
}

func writeTree(b *strings.Builder, a *app.Artifacts) {
	t := a.Tree

	b.WriteString("## Classification tree\n\n")
	fmt.Fprintf(b, "Trained on %d rows, evaluated on %d held-out rows. Complexity parameter selected by %d-fold cross-validated ROC AUC.\n\n",
		t.TrainN, t.TestN, foldCount(t.CVResults))

	b.WriteString("| cp | mean AUC | folds |\n")
	b.WriteString("|---:|---:|---:|\n")
	for _, r := range t.CVResults {
		marker := ""
		if r.CP == t.SelectedCP {
			marker = " *"
		}
		fmt.Fprintf(b, "| %.4g%s | %.4f | %d |\n", r.CP, marker, r.MeanAUC, len(r.FoldAUCs))
	}
	fmt.Fprintf(b, "\nSelected cp = %.4g; fitted tree has %d nodes.\n\n", t.SelectedCP, t.NodeCount)

	b.WriteString("```\n")
	b.WriteString(t.Rendered)
	b.WriteString("```\n\n")

	c := t.Confusion
	b.WriteString("### Held-out confusion matrix\n\n")
	fmt.Fprintf(b, "| actual \\ predicted | %s | %s |\n", c.Levels[0], c.Levels[1])
	b.WriteString("|---|---:|---:|\n")
	for i := 0; i < 2; i++ {
		fmt.Fprintf(b, "| %s | %d | %d |\n", c.Levels[i], c.Counts[i][0], c.Counts[i][1])
	}
	fmt.Fprintf(b, "\nAccuracy: %.3f on %d observations.\n", t.Accuracy, c.Total())
}

func foldCount(results []stats.CVResult) int {
	max := 0
	for _, r := range results {
		if len(r.FoldAUCs) > max {
			max = len(r.FoldAUCs)
		}
	}
	return max
}

// formatP renders a p-value the way statistical tables do, switching to
// scientific notation for very small values.
func formatP(p float64) string {
	if p < 0.0001 {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}
