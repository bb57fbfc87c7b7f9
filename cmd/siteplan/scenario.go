package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/gridpoint-eng/siteplan/internal/earthwork"
	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/pipeline"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// ring is a polygon ring as [x, y] pairs in projected metres.
type ring [][2]float64

func (r ring) points() []geom.Point {
	pts := make([]geom.Point, len(r))
	for i, p := range r {
		pts[i] = geom.Pt(p[0], p[1])
	}
	return pts
}

// scenario is the on-disk run description.
type scenario struct {
	Name     string  `json:"name"`
	Boundary ring    `json:"boundary"`
	Holes    []ring  `json:"holes,omitempty"`
	CellSize float64 `json:"cell_size_m"`

	Surface surfaceSpec    `json:"surface"`
	Zones   []scenarioZone `json:"zones,omitempty"`

	Asset     placement.AssetSpec `json:"asset"`
	Objective string              `json:"objective"`
	Entry     [2]float64          `json:"entry"`

	Road      roadSpec      `json:"road"`
	Earthwork earthworkSpec `json:"earthwork"`
}

type scenarioZone struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	BufferM float64 `json:"buffer_m"`
	Ring    ring    `json:"ring"`
}

// surfaceSpec describes a synthetic elevation surface or an inline raster.
type surfaceSpec struct {
	Kind        string  `json:"kind"` // flat, ramp, rolling, hill
	BaseM       float64 `json:"base_m"`
	GradePct    float64 `json:"grade_pct"`    // ramp
	AmplitudeM  float64 `json:"amplitude_m"`  // rolling
	WavelengthM float64 `json:"wavelength_m"` // rolling
	HeightM     float64 `json:"height_m"`     // hill
	SigmaM      float64 `json:"sigma_m"`      // hill

	Grid *gridSpec `json:"grid,omitempty"`
}

// gridSpec is an inline pre-sampled raster, row 0 southernmost.
type gridSpec struct {
	OriginX  float64   `json:"origin_x"`
	OriginY  float64   `json:"origin_y"`
	CellSize float64   `json:"cell_size_m"`
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	Values   []float64 `json:"values"`
}

type roadSpec struct {
	MaxGradePct     float64 `json:"max_grade_pct"`
	WidthM          float64 `json:"width_m"`
	MinCurveRadiusM float64 `json:"min_curve_radius_m"`
}

type earthworkSpec struct {
	Policy     string `json:"policy"`
	Foundation string `json:"foundation"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %v", path, err)
	}
	return &sc, nil
}

// request converts the scenario into a pipeline request.
func (sc *scenario) request() (pipeline.Request, error) {
	var req pipeline.Request

	if len(sc.Boundary) < 3 {
		return req, fmt.Errorf("boundary needs at least 3 vertices, got %d", len(sc.Boundary))
	}
	boundary := geom.NewPolygon(sc.Boundary.points()...)
	for _, h := range sc.Holes {
		if len(h) < 3 {
			return req, fmt.Errorf("hole needs at least 3 vertices, got %d", len(h))
		}
		boundary.Holes = append(boundary.Holes, h.points())
	}

	src, err := sc.Surface.source(boundary, sc.CellSize)
	if err != nil {
		return req, err
	}

	zones := make([]exclusion.Zone, 0, len(sc.Zones))
	for i, z := range sc.Zones {
		if len(z.Ring) < 3 {
			return req, fmt.Errorf("zone %q needs at least 3 vertices", z.ID)
		}
		kind := exclusion.Kind(z.Kind)
		if kind == "" {
			kind = exclusion.KindCustom
		}
		id := z.ID
		if id == "" {
			id = fmt.Sprintf("zone-%d", i+1)
		}
		zones = append(zones, exclusion.Zone{
			ID: id, Name: z.Name, Kind: kind,
			Geom:    geom.NewPolygon(z.Ring.points()...),
			BufferM: z.BufferM, Active: true,
		})
	}

	req = pipeline.Request{
		Boundary:    boundary,
		Source:      src,
		Zones:       zones,
		Asset:       sc.Asset,
		Objective:   placement.Objective(sc.Objective),
		Entry:       geom.Pt(sc.Entry[0], sc.Entry[1]),
		AnalyzeOpts: terrain.AnalyzeOptions{CellSize: sc.CellSize},
		Road: roadnet.Params{
			MaxGradePct:     sc.Road.MaxGradePct,
			RoadWidthM:      sc.Road.WidthM,
			MinCurveRadiusM: sc.Road.MinCurveRadiusM,
		},
		Earthwork: earthwork.Params{
			Policy:     earthwork.PadPolicy(sc.Earthwork.Policy),
			Foundation: earthwork.FoundationType(sc.Earthwork.Foundation),
		},
	}
	return req, nil
}

// source builds the elevation source for the scenario surface.
func (s *surfaceSpec) source(boundary geom.Polygon, cell float64) (terrain.ElevationSource, error) {
	if s.Grid != nil {
		g := s.Grid
		if g.Rows*g.Cols != len(g.Values) {
			return nil, fmt.Errorf("grid has %d values, want %dx%d=%d",
				len(g.Values), g.Rows, g.Cols, g.Rows*g.Cols)
		}
		return &terrain.GridSource{Grid: terrain.Grid{
			OriginX: g.OriginX, OriginY: g.OriginY, CellSize: g.CellSize,
			Rows: g.Rows, Cols: g.Cols, Values: g.Values,
		}}, nil
	}

	base := s.BaseM
	if base == 0 {
		base = 100
	}
	var fn func(x, y float64) float64
	switch s.Kind {
	case "", "flat":
		fn = func(x, y float64) float64 { return base }
	case "ramp":
		grade := s.GradePct / 100
		fn = func(x, y float64) float64 { return base + grade*x }
	case "rolling":
		amp := s.AmplitudeM
		if amp == 0 {
			amp = 3
		}
		wl := s.WavelengthM
		if wl == 0 {
			wl = 150
		}
		fn = func(x, y float64) float64 {
			return base + amp*math.Sin(2*math.Pi*x/wl)*math.Cos(2*math.Pi*y/wl)
		}
	case "hill":
		h := s.HeightM
		if h == 0 {
			h = 25
		}
		sigma := s.SigmaM
		if sigma == 0 {
			sigma = 80
		}
		br := boundary.BoundingRect()
		cx, cy := (br.X.Lo+br.X.Hi)/2, (br.Y.Lo+br.Y.Hi)/2
		fn = func(x, y float64) float64 {
			d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			return base + h*math.Exp(-d2/(2*sigma*sigma))
		}
	default:
		return nil, fmt.Errorf("unknown surface kind %q", s.Kind)
	}

	if cell <= 0 {
		cell = 10
	}
	br := boundary.BoundingRect()
	pad := 2 * cell
	return &terrain.FuncSource{
		Extent: geom.RectFrom(
			geom.Pt(br.X.Lo-pad, br.Y.Lo-pad),
			geom.Pt(br.X.Hi+pad, br.Y.Hi+pad)),
		Res: cell,
		Fn:  fn,
	}, nil
}

// demoScenario is used when no scenario file is given.
func demoScenario() *scenario {
	return &scenario{
		Name:     "demo",
		Boundary: ring{{0, 0}, {600, 0}, {600, 600}, {0, 600}},
		CellSize: 10,
		Surface:  surfaceSpec{Kind: "rolling", BaseM: 120, AmplitudeM: 2.5, WavelengthM: 220},
		Zones: []scenarioZone{
			{ID: "wetland-n", Name: "north wetland", Kind: string(exclusion.KindWetland),
				Ring: ring{{60, 420}, {220, 420}, {220, 560}, {60, 560}}},
			{ID: "stream-e", Name: "east stream", Kind: string(exclusion.KindStreamBuffer), BufferM: 20,
				Ring: ring{{520, 0}, {540, 0}, {540, 600}, {520, 600}}},
		},
		Asset: placement.AssetSpec{
			WidthM: 12, LengthM: 30, Count: 12,
			MinSpacingM: 25, MaxSlopeDeg: 5,
		},
		Objective: string(placement.ObjectiveBalanced),
		Entry:     [2]float64{5, 300},
		Road:      roadSpec{MaxGradePct: 8, WidthM: 6, MinCurveRadiusM: 25},
		Earthwork: earthworkSpec{Policy: string(earthwork.PolicyMean), Foundation: string(earthwork.FoundationSlab)},
	}
}
