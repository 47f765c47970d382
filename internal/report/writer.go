package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/errors"
)

// Output file names within the report directory.
const (
	MarkdownFile = "report.md"
	HTMLFile     = "report.html"
	WorkbookFile = "report.xlsx"
	ResultsFile  = "results.json"
)

// Writer renders a full artifact set into an output directory.
type Writer struct {
	title string
	dir   string
	log   *internal.Logger
}

// NewWriter creates a report writer.
func NewWriter(title, dir string, log *internal.Logger) *Writer {
	return &Writer{title: title, dir: dir, log: log}
}

// Write renders every output format: markdown, HTML, the XLSX workbook,
// the fitted-curve PNG, and the raw results JSON.
func (w *Writer) Write(a *app.Artifacts) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create report directory %s", w.dir)
	}

	md := Markdown(w.title, a)
	if err := os.WriteFile(filepath.Join(w.dir, MarkdownFile), []byte(md), 0o644); err != nil {
		return errors.Wrap(err, "failed to write markdown report")
	}
	if err := os.WriteFile(filepath.Join(w.dir, HTMLFile), HTML(w.title, md), 0o644); err != nil {
		return errors.Wrap(err, "failed to write HTML report")
	}

	if err := SaveCurvePNG(filepath.Join(w.dir, CurveImageFile), a.Regression); err != nil {
		return err
	}
	if err := SaveWorkbook(filepath.Join(w.dir, WorkbookFile), a); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}
	if err := os.WriteFile(filepath.Join(w.dir, ResultsFile), payload, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results JSON")
	}

	w.log.Info("report written to %s (run %s)", w.dir, a.RunID)
	return nil
}
