// Package earthwork estimates cut and fill volumes for graded asset pads and
// road corridors against the analyzed terrain.
package earthwork

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// PadPolicy selects the design elevation for a graded pad.
type PadPolicy string

const (
	// PolicyMean balances cut against fill.
	PolicyMean PadPolicy = "mean"
	// PolicyMin grades down to the lowest point: cut only.
	PolicyMin PadPolicy = "min"
	// PolicyMax fills up to the highest point: fill only.
	PolicyMax PadPolicy = "max"
)

// FoundationType adds excavation below the finished pad.
type FoundationType string

const (
	FoundationNone    FoundationType = "none"
	FoundationSlab    FoundationType = "slab"
	FoundationPier    FoundationType = "pier"
	FoundationBallast FoundationType = "ballast"
)

// foundationDepthM is the excavation depth below design grade per type.
var foundationDepthM = map[FoundationType]float64{
	FoundationNone:    0,
	FoundationSlab:    0.5,
	FoundationPier:    2.0,
	FoundationBallast: 0.3,
}

// gradingIncrementM quantizes design elevations to buildable increments.
const gradingIncrementM = 0.1

// designControlStride downsamples the existing profile into corridor design
// grade control points.
const designControlStride = 5

// Params tune the estimate. Zero values take defaults.
type Params struct {
	Policy     PadPolicy      // default mean
	Foundation FoundationType // default none
}

func (p *Params) applyDefaults() error {
	if p.Policy == "" {
		p.Policy = PolicyMean
	}
	switch p.Policy {
	case PolicyMean, PolicyMin, PolicyMax:
	default:
		return fmt.Errorf("unknown pad policy %q", p.Policy)
	}
	if p.Foundation == "" {
		p.Foundation = FoundationNone
	}
	if _, ok := foundationDepthM[p.Foundation]; !ok {
		return fmt.Errorf("unknown foundation type %q", p.Foundation)
	}
	return nil
}

// PadEstimate is the earthwork for one graded asset pad.
type PadEstimate struct {
	AssetID          int     `json:"asset_id"`
	DesignElevationM float64 `json:"design_elevation_m"`
	AreaM2           float64 `json:"area_m2"`
	CutM3            float64 `json:"cut_m3"`
	FillM3           float64 `json:"fill_m3"`
	MaxCutDepthM     float64 `json:"max_cut_depth_m"`
	MaxFillDepthM    float64 `json:"max_fill_depth_m"`
	FoundationM3     float64 `json:"foundation_m3"` // excavation below design grade
}

// CorridorEstimate is the earthwork for one road segment strip.
type CorridorEstimate struct {
	SegmentID int     `json:"segment_id"`
	AreaM2    float64 `json:"area_m2"`
	CutM3     float64 `json:"cut_m3"`
	FillM3    float64 `json:"fill_m3"`
}

// Estimate is the site-wide earthwork summary. CutFillRatio is zero when no
// fill is required.
type Estimate struct {
	Policy     PadPolicy      `json:"policy"`
	Foundation FoundationType `json:"foundation"`

	Pads      []PadEstimate      `json:"pads"`
	Corridors []CorridorEstimate `json:"corridors"`

	TotalCutM3   float64 `json:"total_cut_m3"`
	TotalFillM3  float64 `json:"total_fill_m3"`
	NetM3        float64 `json:"net_m3"` // cut minus fill, positive = surplus
	CutFillRatio float64 `json:"cut_fill_ratio"`
}

// Run estimates pad and corridor earthwork. The road network is optional.
func Run(model *terrain.Model, placed []placement.AssetPlacement,
	net *roadnet.Network, p Params) (*Estimate, error) {

	if err := p.applyDefaults(); err != nil {
		return nil, err
	}
	est := &Estimate{Policy: p.Policy, Foundation: p.Foundation}

	for _, a := range placed {
		pad := estimatePad(model, a, p)
		est.Pads = append(est.Pads, pad)
		est.TotalCutM3 += pad.CutM3 + pad.FoundationM3
		est.TotalFillM3 += pad.FillM3
	}

	if net != nil {
		for _, s := range net.Segments {
			c := estimateCorridor(s, net.WidthM)
			est.Corridors = append(est.Corridors, c)
			est.TotalCutM3 += c.CutM3
			est.TotalFillM3 += c.FillM3
		}
	}

	est.NetM3 = est.TotalCutM3 - est.TotalFillM3
	if est.TotalFillM3 > 0 {
		est.CutFillRatio = est.TotalCutM3 / est.TotalFillM3
	}

	monitoring.Logf("[Earthwork] %d pads, %d corridors: cut %.0f m3, fill %.0f m3, net %.0f m3",
		len(est.Pads), len(est.Corridors), est.TotalCutM3, est.TotalFillM3, est.NetM3)
	return est, nil
}

// estimatePad integrates existing-vs-design depth over the footprint cells.
// Footprints smaller than a grid cell fall back to the centre cell sample.
func estimatePad(model *terrain.Model, a placement.AssetPlacement, p Params) PadEstimate {
	g := &model.Elevation
	br := a.Footprint.BoundingRect()

	var elevs []float64
	r0, c0, _ := g.CellAt(geom.Pt(br.X.Lo, br.Y.Lo))
	r1, c1, _ := g.CellAt(geom.Pt(br.X.Hi, br.Y.Hi))
	if r1 < r0 {
		r0, r1 = r1, r0
	}
	if c1 < c0 {
		c0, c1 = c1, c0
	}
	for r := max(r0-1, 0); r <= min(r1+1, g.Rows-1); r++ {
		for c := max(c0-1, 0); c <= min(c1+1, g.Cols-1); c++ {
			if !a.Footprint.Contains(g.CellCenter(r, c)) {
				continue
			}
			if v := g.Values[g.Idx(r, c)]; terrain.Valid(v) {
				elevs = append(elevs, v)
			}
		}
	}

	area := float64(len(elevs)) * g.CellArea()
	if len(elevs) == 0 {
		area = a.Footprint.Area()
		if v := g.At(a.Center); terrain.Valid(v) {
			elevs = []float64{v}
		}
	}

	pad := PadEstimate{AssetID: a.ID, AreaM2: area}
	if len(elevs) == 0 {
		return pad
	}

	design := elevs[0]
	switch p.Policy {
	case PolicyMin:
		for _, v := range elevs {
			design = math.Min(design, v)
		}
	case PolicyMax:
		for _, v := range elevs {
			design = math.Max(design, v)
		}
	default:
		sum := 0.0
		for _, v := range elevs {
			sum += v
		}
		design = sum / float64(len(elevs))
	}
	design = math.Round(design/gradingIncrementM) * gradingIncrementM
	pad.DesignElevationM = design

	cellArea := area / float64(len(elevs))
	for _, v := range elevs {
		if dz := v - design; dz > 0 {
			pad.CutM3 += dz * cellArea
			pad.MaxCutDepthM = math.Max(pad.MaxCutDepthM, dz)
		} else {
			pad.FillM3 += -dz * cellArea
			pad.MaxFillDepthM = math.Max(pad.MaxFillDepthM, -dz)
		}
	}
	pad.FoundationM3 = area * foundationDepthM[p.Foundation]
	return pad
}

// estimateCorridor integrates existing-vs-design depth along the segment
// strip. The design grade line is a piecewise-linear fit through every
// designControlStride-th existing profile sample, endpoints pinned, so the
// road follows the ground at a smoothed grade rather than one flat plane.
func estimateCorridor(s roadnet.Segment, widthM float64) CorridorEstimate {
	c := CorridorEstimate{SegmentID: s.ID, AreaM2: s.LengthM * widthM}

	var xs, ys []float64
	for i, pt := range s.Profile.Points {
		if !terrain.Valid(pt.Elevation) {
			continue
		}
		last := i == len(s.Profile.Points)-1
		if len(xs) == 0 || last || i%designControlStride == 0 {
			// Fit wants strictly increasing abscissae.
			if len(xs) > 0 && pt.Distance <= xs[len(xs)-1] {
				continue
			}
			xs = append(xs, pt.Distance)
			ys = append(ys, pt.Elevation)
		}
	}
	if len(xs) < 2 {
		return c
	}

	var design interp.PiecewiseLinear
	if err := design.Fit(xs, ys); err != nil {
		return c
	}

	for i := 1; i < len(s.Profile.Points); i++ {
		a, b := s.Profile.Points[i-1], s.Profile.Points[i]
		if !terrain.Valid(a.Elevation) || !terrain.Valid(b.Elevation) {
			continue
		}
		run := b.Distance - a.Distance
		if run <= 0 {
			continue
		}
		mid := (a.Distance + b.Distance) / 2
		existing := (a.Elevation + b.Elevation) / 2
		if dz := existing - design.Predict(mid); dz > 0 {
			c.CutM3 += dz * run * widthM
		} else {
			c.FillM3 += -dz * run * widthM
		}
	}
	return c
}
