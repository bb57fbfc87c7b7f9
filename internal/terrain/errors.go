package terrain

import "fmt"

// NoCoverageError is returned when the elevation source has no valid cells
// inside the boundary.
type NoCoverageError struct {
	BoundaryArea float64 // square metres
	CellSize     float64
}

func (e *NoCoverageError) Error() string {
	return fmt.Sprintf("no elevation coverage inside boundary (area %.1f m2, cell size %.2f m)",
		e.BoundaryArea, e.CellSize)
}

// UnprojectedInputError is returned when input geometry looks like geographic
// degree coordinates rather than a planar projection.
type UnprojectedInputError struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e *UnprojectedInputError) Error() string {
	return fmt.Sprintf("boundary coordinates (%.6f,%.6f)-(%.6f,%.6f) look like geographic degrees; a planar projected CRS is required",
		e.MinX, e.MinY, e.MaxX, e.MaxY)
}
