package driver

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot writes the pressure trace to an image file; the format follows the
// file extension (png, pdf, svg).
func (r *Result) Plot(path, title string) error {
	if len(r.Time) == 0 {
		return fmt.Errorf("driver: nothing to plot")
	}

	pts := make(plotter.XYs, len(r.Time))
	for i := range r.Time {
		pts[i].X = r.Time[i]
		pts[i].Y = r.Pressure[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "outlet pressure"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("driver: building pressure line: %w", err)
	}
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("driver: saving plot: %w", err)
	}
	return nil
}
