package tracker

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot saves a line plot of the named series of the recorder to
// filename. The format of the image is determined by the extension of
// filename.
func (r *Recorder) Plot(filename string, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("plot: no series to plot")
	}

	p := plot.New()
	p.X.Label.Text = "Step"
	if len(names) == 1 {
		p.Title.Text = names[0]
		p.Y.Label.Text = names[0]
	}

	lines := make([]interface{}, 0, 2*len(names))
	for _, name := range names {
		series, ok := r.series[name]
		if !ok {
			return fmt.Errorf("plot: no series named %q", name)
		}

		pts := make(plotter.XYs, len(series))
		for i, value := range series {
			pts[i].X = float64(i)
			pts[i].Y = value
		}
		lines = append(lines, name, pts)
	}

	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("plot: could not add lines: %w", err)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return fmt.Errorf("plot: could not save plot: %w", err)
	}
	return nil
}
