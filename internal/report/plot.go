package report

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal/errors"
)

// CurvePlot draws the fitted logistic curve with a ±2 SE band and the
// observed outcomes as points along the top and bottom edges.
func CurvePlot(reg app.RegressionBlock) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Probability of finding the fast target first"
	p.X.Label.Text = "Latency (ms)"
	p.Y.Label.Text = "P(fast first)"
	p.Y.Min = -0.05
	p.Y.Max = 1.05

	curve := make(plotter.XYs, len(reg.Curve))
	upper := make(plotter.XYs, len(reg.Curve))
	lower := make(plotter.XYs, len(reg.Curve))
	for i, pt := range reg.Curve {
		curve[i] = plotter.XY{X: pt.X, Y: pt.P}
		upper[i] = plotter.XY{X: pt.X, Y: clamp01(pt.P + 2*pt.SE)}
		lower[i] = plotter.XY{X: pt.X, Y: clamp01(pt.P - 2*pt.SE)}
	}

	line, err := plotter.NewLine(curve)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build curve line")
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	upperLine, err := plotter.NewLine(upper)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build band line")
	}
	lowerLine, err := plotter.NewLine(lower)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build band line")
	}
	band := color.RGBA{R: 31, G: 119, B: 180, A: 120}
	for _, l := range []*plotter.Line{upperLine, lowerLine} {
		l.LineStyle.Width = vg.Points(0.75)
		l.LineStyle.Color = band
		l.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	}

	points := make(plotter.XYs, len(reg.RugLatencies))
	for i, x := range reg.RugLatencies {
		points[i] = plotter.XY{X: x, Y: float64(reg.RugOutcomes[i])}
	}
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build outcome points")
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 80, G: 80, B: 80, A: 160}

	p.Add(plotter.NewGrid(), scatter, upperLine, lowerLine, line)
	return p, nil
}

// SaveCurvePNG renders the curve plot to a PNG at path.
func SaveCurvePNG(path string, reg app.RegressionBlock) error {
	p, err := CurvePlot(reg)
	if err != nil {
		return err
	}
	if err := p.Save(7*vg.Inch, 4.5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
