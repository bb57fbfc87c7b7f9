// Package report writes diagnostic charts for a planning run.
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// SlopeBands writes a bar chart of the terrain's slope classification to a
// PNG at path.
func SlopeBands(path string, model *terrain.Model) error {
	vals := make(plotter.Values, len(model.SlopeBandPcts))
	names := make([]string, len(model.SlopeBandPcts))
	for i, b := range model.SlopeBandPcts {
		vals[i] = b.Pct
		names[i] = b.Band.Name
	}

	p := plot.New()
	p.Title.Text = "Slope classification"
	p.Y.Label.Text = "share of site area (%)"

	bars, err := plotter.NewBarChart(vals, vg.Points(28))
	if err != nil {
		return fmt.Errorf("slope band chart: %v", err)
	}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// GradeProfiles writes elevation-vs-distance lines for every road segment to
// a PNG at path.
func GradeProfiles(path string, net *roadnet.Network) error {
	if net == nil || len(net.Segments) == 0 {
		return fmt.Errorf("grade profile chart: no road segments")
	}

	p := plot.New()
	p.Title.Text = "Road grade profiles"
	p.X.Label.Text = "distance along segment (m)"
	p.Y.Label.Text = "elevation (m)"

	for i, s := range net.Segments {
		var xys plotter.XYs
		for _, pt := range s.Profile.Points {
			if !terrain.Valid(pt.Elevation) {
				continue
			}
			xys = append(xys, plotter.XY{X: pt.Distance, Y: pt.Elevation})
		}
		if len(xys) < 2 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("grade profile line: %v", err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s to %s", s.FromID, s.ToID), line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
