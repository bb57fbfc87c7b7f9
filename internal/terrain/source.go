package terrain

import "github.com/gridpoint-eng/siteplan/internal/geom"

// ElevationSource supplies elevation samples over some planar extent. The
// collaborator that clips and hands over DEM data implements this; the two
// implementations here cover pre-sampled rasters and synthetic surfaces.
type ElevationSource interface {
	// Bounds returns the extent over which the source can answer queries.
	Bounds() geom.Rect
	// CellSize returns the native resolution in metres.
	CellSize() float64
	// ElevationAt returns the elevation at the point, or NoData when the
	// source has no value there.
	ElevationAt(x, y float64) float64
}

// GridSource adapts a pre-sampled elevation Grid to ElevationSource.
type GridSource struct {
	Grid Grid
}

// Bounds implements ElevationSource.
func (s *GridSource) Bounds() geom.Rect {
	return geom.RectFrom(
		geom.Pt(s.Grid.OriginX, s.Grid.OriginY),
		geom.Pt(
			s.Grid.OriginX+float64(s.Grid.Cols)*s.Grid.CellSize,
			s.Grid.OriginY+float64(s.Grid.Rows)*s.Grid.CellSize,
		),
	)
}

// CellSize implements ElevationSource.
func (s *GridSource) CellSize() float64 { return s.Grid.CellSize }

// ElevationAt implements ElevationSource.
func (s *GridSource) ElevationAt(x, y float64) float64 {
	return s.Grid.At(geom.Pt(x, y))
}

// FuncSource is an analytic elevation surface, used for synthetic terrain in
// tests and demo scenarios.
type FuncSource struct {
	Extent geom.Rect
	Res    float64
	Fn     func(x, y float64) float64
}

// Bounds implements ElevationSource.
func (s *FuncSource) Bounds() geom.Rect { return s.Extent }

// CellSize implements ElevationSource.
func (s *FuncSource) CellSize() float64 { return s.Res }

// ElevationAt implements ElevationSource.
func (s *FuncSource) ElevationAt(x, y float64) float64 {
	if !s.Extent.ContainsPoint(geom.Pt(x, y)) {
		return NoData
	}
	return s.Fn(x, y)
}
