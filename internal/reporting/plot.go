package reporting

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"nidwatch/internal/analysis"
)

// PlotPCA renders a PC1/PC2 scatter of p. The image format follows the
// filename extension.
func PlotPCA(filename string, p *analysis.Projection) error {
	if p == nil || len(p.Points) == 0 {
		return errors.New("no projected points to plot")
	}

	pl := plot.New()
	pl.Title.Text = "PCA Scatter (2 Components)"
	pl.X.Label.Text = fmt.Sprintf("PC1 (%.2f%%)", p.ExplainedRatio[0]*100)
	pl.Y.Label.Text = fmt.Sprintf("PC2 (%.2f%%)", p.ExplainedRatio[1]*100)

	pts := make(plotter.XYs, len(p.Points))
	for i, pt := range p.Points {
		pts[i].X = pt.PC1
		pts[i].Y = pt.PC2
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Color = color.RGBA{R: 44, G: 62, B: 80, A: 180}
	scatter.GlyphStyle.Radius = vg.Points(2)

	pl.Add(scatter)
	pl.Add(plotter.NewGrid())

	return pl.Save(6*vg.Inch, 4*vg.Inch, filename)
}
