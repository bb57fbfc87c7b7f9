// Package render draws site plan previews to PNG: hillshaded terrain,
// exclusion zones, placed assets and the road network.
package render

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// Options tune output geometry. Zero values take defaults.
type Options struct {
	WidthPx  int     // default 1024
	MarginPx float64 // default 24
}

// zoneColors by kind, RGBA.
var zoneColors = map[exclusion.Kind][4]float64{
	exclusion.KindWetland:      {0.20, 0.45, 0.85, 0.45},
	exclusion.KindStreamBuffer: {0.25, 0.65, 0.90, 0.45},
	exclusion.KindEasement:     {0.85, 0.65, 0.20, 0.45},
	exclusion.KindSetback:      {0.60, 0.60, 0.60, 0.45},
	exclusion.KindCustom:       {0.80, 0.30, 0.30, 0.45},
}

// SitePlan renders the full plan to a PNG at path. Any of zones, placed and
// net may be nil or empty; the terrain model is required.
func SitePlan(path string, model *terrain.Model, zones []exclusion.Zone,
	placed *placement.Result, net *roadnet.Network, entry geom.Point, opts Options) error {

	if model == nil {
		return fmt.Errorf("render: terrain model is required")
	}
	if opts.WidthPx <= 0 {
		opts.WidthPx = 1024
	}
	if opts.MarginPx <= 0 {
		opts.MarginPx = 24
	}

	br := model.Boundary.BoundingRect()
	spanX := br.X.Hi - br.X.Lo
	spanY := br.Y.Hi - br.Y.Lo
	if spanX <= 0 || spanY <= 0 {
		return fmt.Errorf("render: degenerate boundary extent %gx%g", spanX, spanY)
	}
	scale := (float64(opts.WidthPx) - 2*opts.MarginPx) / spanX
	heightPx := int(spanY*scale + 2*opts.MarginPx)

	dc := gg.NewContext(opts.WidthPx, heightPx)
	dc.SetRGB(0.96, 0.96, 0.94)
	dc.Clear()

	// World to pixel, north up.
	px := func(p geom.Point) (float64, float64) {
		return opts.MarginPx + (p.X-br.X.Lo)*scale,
			float64(heightPx) - opts.MarginPx - (p.Y-br.Y.Lo)*scale
	}

	drawHillshade(dc, model, px, scale)
	drawPolygonOutline(dc, model.Boundary, px, 0.15, 0.15, 0.15, 2)

	for _, z := range zones {
		if !z.Active {
			continue
		}
		c, ok := zoneColors[z.Kind]
		if !ok {
			c = zoneColors[exclusion.KindCustom]
		}
		tracePolygon(dc, z.Geom, px)
		dc.SetRGBA(c[0], c[1], c[2], c[3])
		dc.Fill()
		drawPolygonOutline(dc, z.Geom, px, c[0], c[1], c[2], 1)
	}

	if net != nil {
		dc.SetRGBA(0.45, 0.30, 0.15, 0.9)
		dc.SetLineWidth(math.Max(net.WidthM*scale, 1.5))
		for _, s := range net.Segments {
			for i, p := range s.Path {
				x, y := px(p)
				if i == 0 {
					dc.MoveTo(x, y)
				} else {
					dc.LineTo(x, y)
				}
			}
			dc.Stroke()
		}
	}

	if placed != nil {
		for _, a := range placed.Placed {
			tracePolygon(dc, a.Footprint, px)
			dc.SetRGBA(0.15, 0.35, 0.75, 0.85)
			dc.Fill()
			drawPolygonOutline(dc, a.Footprint, px, 0.05, 0.15, 0.45, 1)
		}
	}

	ex, ey := px(entry)
	dc.SetRGB(0.10, 0.60, 0.20)
	dc.DrawCircle(ex, ey, 6)
	dc.Fill()

	return dc.SavePNG(path)
}

// drawHillshade paints one filled square per valid cell.
func drawHillshade(dc *gg.Context, model *terrain.Model,
	px func(geom.Point) (float64, float64), scale float64) {

	g := &model.Elevation
	side := g.CellSize * scale
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := g.Idx(r, c)
			if !terrain.Valid(g.Values[i]) {
				continue
			}
			shade := float64(model.Hillshade[i]) / 255
			v := 0.35 + 0.6*shade
			ctr := g.CellCenter(r, c)
			x, y := px(ctr)
			dc.SetRGB(v, v*0.98, v*0.92)
			dc.DrawRectangle(x-side/2, y-side/2, side+1, side+1)
			dc.Fill()
		}
	}
}

func tracePolygon(dc *gg.Context, p geom.Polygon, px func(geom.Point) (float64, float64)) {
	for i, pt := range p.Outer {
		x, y := px(pt)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
	for _, hole := range p.Holes {
		for i, pt := range hole {
			x, y := px(pt)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	}
}

func drawPolygonOutline(dc *gg.Context, p geom.Polygon,
	px func(geom.Point) (float64, float64), r, g, b, width float64) {

	tracePolygon(dc, p, px)
	dc.SetRGB(r, g, b)
	dc.SetLineWidth(width)
	dc.Stroke()
}
