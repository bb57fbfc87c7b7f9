package terrain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
)

// Slope below this gradient magnitude (rise/run) is treated as flat for
// aspect purposes.
const flatSlopeEpsilon = 1e-3

// Slope classification bands in percent grade. Reported shares always sum
// to 100% of valid cells.
var SlopeBands = []SlopeBand{
	{"flat", 0, 2},
	{"gentle", 2, 5},
	{"moderate", 5, 10},
	{"steep", 10, 15},
	{"very_steep", 15, math.Inf(1)},
}

// SlopeBand is one percent-grade classification band.
type SlopeBand struct {
	Name    string  `json:"name"`
	LowPct  float64 `json:"low_pct"`
	HighPct float64 `json:"high_pct"`
}

// BandShare is the share of valid area falling in one slope band.
type BandShare struct {
	Band SlopeBand `json:"band"`
	Pct  float64   `json:"pct"`
}

// Stats summarizes a grid over its valid cells.
type Stats struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	ValidCells  int     `json:"valid_cells"`
	NoDataCells int     `json:"nodata_cells"`
}

// Aspect octant names in compass order.
var aspectOctants = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Model is the complete terrain analysis for one boundary: the clipped
// elevation grid plus derived surfaces and statistics. All grids share the
// same geometry. Read-only once built.
type Model struct {
	Boundary  geom.Polygon
	Elevation Grid
	SlopeDeg  Grid // degrees
	Aspect    Grid // compass degrees of steepest descent, AspectFlat when flat
	Hillshade []uint8

	ElevationStats Stats
	SlopeStats     Stats // degrees
	SlopeBandPcts  []BandShare
	AspectDist     map[string]float64 // octant -> percent of non-flat valid cells
}

// AnalyzeOptions tune the analysis. Zero values take defaults.
type AnalyzeOptions struct {
	// CellSize overrides the source resolution when positive.
	CellSize float64
	// HillshadeAzimuthDeg is the sun azimuth, default 315 (NW).
	HillshadeAzimuthDeg float64
	// HillshadeAltitudeDeg is the sun altitude, default 45.
	HillshadeAltitudeDeg float64
}

// Analyze clips the elevation source to the boundary and derives slope,
// aspect and hillshade surfaces with statistics. It returns
// UnprojectedInputError for degree-like coordinates and NoCoverageError when
// no valid elevation falls inside the boundary.
func Analyze(boundary geom.Polygon, src ElevationSource, opts AnalyzeOptions) (*Model, error) {
	if err := checkProjected(boundary); err != nil {
		return nil, err
	}

	cell := src.CellSize()
	if opts.CellSize > 0 {
		cell = opts.CellSize
	}
	if cell <= 0 {
		cell = 1
	}

	br := boundary.BoundingRect()
	cols := int(math.Ceil((br.X.Hi - br.X.Lo) / cell))
	rows := int(math.Ceil((br.Y.Hi - br.Y.Lo) / cell))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	m := &Model{
		Boundary:  boundary,
		Elevation: NewGrid(br.X.Lo, br.Y.Lo, cell, rows, cols),
	}

	// Clip: only cells whose centres fall inside the boundary get values.
	valid := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			ctr := m.Elevation.CellCenter(r, c)
			if !boundary.Contains(ctr) {
				continue
			}
			v := src.ElevationAt(ctr.X, ctr.Y)
			if Valid(v) {
				m.Elevation.Values[m.Elevation.Idx(r, c)] = v
				valid++
			}
		}
	}
	if valid == 0 {
		return nil, &NoCoverageError{BoundaryArea: boundary.Area(), CellSize: cell}
	}

	m.deriveSlopeAspect()
	m.deriveHillshade(opts)
	m.computeStats()

	monitoring.Logf("[Terrain] analyzed %dx%d grid at %.1fm: %d valid cells, slope mean %.2f deg",
		rows, cols, cell, m.ElevationStats.ValidCells, m.SlopeStats.Mean)
	return m, nil
}

// checkProjected rejects boundaries whose coordinates look like geographic
// degrees: small magnitudes combined with a sub-degree extent.
func checkProjected(boundary geom.Polygon) error {
	br := boundary.BoundingRect()
	degreeLike := math.Abs(br.X.Lo) <= 360 && math.Abs(br.X.Hi) <= 360 &&
		math.Abs(br.Y.Lo) <= 90 && math.Abs(br.Y.Hi) <= 90
	tiny := (br.X.Hi-br.X.Lo) < 2 && (br.Y.Hi-br.Y.Lo) < 2
	if degreeLike && tiny {
		return &UnprojectedInputError{MinX: br.X.Lo, MinY: br.Y.Lo, MaxX: br.X.Hi, MaxY: br.Y.Hi}
	}
	return nil
}

// deriveSlopeAspect computes slope (degrees) and aspect (compass degrees of
// steepest descent) from the eight neighbouring cells. Cells with fewer than
// three valid neighbours become NoData in both derived grids.
func (m *Model) deriveSlopeAspect() {
	g := &m.Elevation
	m.SlopeDeg = NewGrid(g.OriginX, g.OriginY, g.CellSize, g.Rows, g.Cols)
	m.Aspect = NewGrid(g.OriginX, g.OriginY, g.CellSize, g.Rows, g.Cols)

	at := func(r, c int) float64 {
		if r < 0 || r >= g.Rows || c < 0 || c >= g.Cols {
			return NoData
		}
		return g.Values[g.Idx(r, c)]
	}

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			center := at(r, c)
			if !Valid(center) {
				continue
			}

			// Horn's method neighbours; missing neighbours fall back to the
			// centre value so edge cells use whatever is available.
			nValid := 0
			n := func(dr, dc int) float64 {
				v := at(r+dr, c+dc)
				if Valid(v) {
					nValid++
					return v
				}
				return center
			}
			nw, nn, ne := n(1, -1), n(1, 0), n(1, 1)
			ww, ee := n(0, -1), n(0, 1)
			sw, ss, se := n(-1, -1), n(-1, 0), n(-1, 1)

			if nValid < 3 {
				continue
			}

			dzdx := ((ne + 2*ee + se) - (nw + 2*ww + sw)) / (8 * g.CellSize)
			dzdy := ((ne + 2*nn + nw) - (se + 2*ss + sw)) / (8 * g.CellSize)

			grad := math.Hypot(dzdx, dzdy)
			idx := g.Idx(r, c)
			m.SlopeDeg.Values[idx] = math.Atan(grad) * 180 / math.Pi

			if grad < flatSlopeEpsilon {
				m.Aspect.Values[idx] = AspectFlat
			} else {
				// Steepest descent is the negative gradient; compass bearing
				// has north = +Y, clockwise.
				m.Aspect.Values[idx] = math.Mod(
					math.Atan2(-dzdx, -dzdy)*180/math.Pi+360, 360)
			}
		}
	}
}

// deriveHillshade computes 0-255 illumination for the preview renderer.
// NoData cells render as 0.
func (m *Model) deriveHillshade(opts AnalyzeOptions) {
	az := opts.HillshadeAzimuthDeg
	if az == 0 {
		az = 315
	}
	alt := opts.HillshadeAltitudeDeg
	if alt == 0 {
		alt = 45
	}
	azRad := (360 - az + 90) * math.Pi / 180
	altRad := alt * math.Pi / 180

	g := &m.Elevation
	m.Hillshade = make([]uint8, len(g.Values))
	for i, v := range g.Values {
		if !Valid(v) || !Valid(m.SlopeDeg.Values[i]) {
			continue
		}
		slopeRad := m.SlopeDeg.Values[i] * math.Pi / 180
		aspect := m.Aspect.Values[i]
		aspectRad := 0.0
		if aspect != AspectFlat {
			aspectRad = (90 - aspect) * math.Pi / 180
		}
		h := math.Cos(altRad)*math.Cos(slopeRad) +
			math.Sin(altRad)*math.Sin(slopeRad)*math.Cos(azRad-aspectRad)
		m.Hillshade[i] = uint8((h + 1) / 2 * 255)
	}
}

func gridStats(g *Grid) Stats {
	vals := make([]float64, 0, len(g.Values))
	nodata := 0
	for _, v := range g.Values {
		if Valid(v) {
			vals = append(vals, v)
		} else {
			nodata++
		}
	}
	s := Stats{ValidCells: len(vals), NoDataCells: nodata}
	if len(vals) == 0 {
		return s
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Mean = stat.Mean(vals, nil)
	if len(vals) > 1 {
		s.StdDev = stat.StdDev(vals, nil)
	}
	return s
}

func (m *Model) computeStats() {
	m.ElevationStats = gridStats(&m.Elevation)
	m.SlopeStats = gridStats(&m.SlopeDeg)

	// Band shares over valid slope cells, in percent grade.
	counts := make([]int, len(SlopeBands))
	total := 0
	for _, v := range m.SlopeDeg.Values {
		if !Valid(v) {
			continue
		}
		pct := math.Tan(v*math.Pi/180) * 100
		for i, b := range SlopeBands {
			if pct >= b.LowPct && pct < b.HighPct {
				counts[i]++
				break
			}
		}
		total++
	}
	m.SlopeBandPcts = make([]BandShare, len(SlopeBands))
	for i, b := range SlopeBands {
		share := 0.0
		if total > 0 {
			share = float64(counts[i]) / float64(total) * 100
		}
		m.SlopeBandPcts[i] = BandShare{Band: b, Pct: share}
	}

	// Aspect octant distribution over non-flat valid cells.
	m.AspectDist = make(map[string]float64, len(aspectOctants))
	octCounts := make([]int, len(aspectOctants))
	nonFlat := 0
	for _, v := range m.Aspect.Values {
		if !Valid(v) || v == AspectFlat {
			continue
		}
		oct := int(math.Mod(v+22.5, 360) / 45)
		octCounts[oct]++
		nonFlat++
	}
	for i, name := range aspectOctants {
		if nonFlat > 0 {
			m.AspectDist[name] = float64(octCounts[i]) / float64(nonFlat) * 100
		} else {
			m.AspectDist[name] = 0
		}
	}
}

// FootprintSample summarizes terrain under a footprint polygon.
type FootprintSample struct {
	Cells         int
	MeanElevation float64
	MeanSlopeDeg  float64
	ElevStdDev    float64
	MinElevation  float64
	MaxElevation  float64
}

// SampleFootprint gathers elevation and slope cells whose centres fall
// inside the polygon. Cells lacking either value are skipped.
func (m *Model) SampleFootprint(fp geom.Polygon) FootprintSample {
	br := fp.BoundingRect()
	g := &m.Elevation

	var elevs, slopes []float64
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
			ctr := g.CellCenter(r, c)
			if !fp.Contains(ctr) {
				continue
			}
			idx := g.Idx(r, c)
			ev, sv := g.Values[idx], m.SlopeDeg.Values[idx]
			if Valid(ev) && Valid(sv) {
				elevs = append(elevs, ev)
				slopes = append(slopes, sv)
			}
		}
	}

	fs := FootprintSample{Cells: len(elevs)}
	if len(elevs) == 0 {
		return fs
	}
	fs.MeanElevation = stat.Mean(elevs, nil)
	fs.MeanSlopeDeg = stat.Mean(slopes, nil)
	if len(elevs) > 1 {
		fs.ElevStdDev = stat.StdDev(elevs, nil)
	}
	fs.MinElevation, fs.MaxElevation = elevs[0], elevs[0]
	for _, v := range elevs {
		if v < fs.MinElevation {
			fs.MinElevation = v
		}
		if v > fs.MaxElevation {
			fs.MaxElevation = v
		}
	}
	return fs
}
