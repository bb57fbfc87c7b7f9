// Package terrain derives slope, aspect and hillshade surfaces from a
// sampled elevation source clipped to a site boundary, and reports the
// statistics the rest of the pipeline depends on.
package terrain

import (
	"math"

	"github.com/gridpoint-eng/siteplan/internal/geom"
)

// NoData marks cells without a usable value in any grid.
var NoData = math.NaN()

// AspectFlat is the sentinel aspect for cells with no meaningful downhill
// direction (slope below flatSlopeEpsilon).
const AspectFlat = -1.0

// Grid is a regular raster: row 0 is the southernmost row, column 0 the
// westernmost column. Cell values are indexed row-major via Idx.
type Grid struct {
	OriginX  float64 // west edge of column 0
	OriginY  float64 // south edge of row 0
	CellSize float64 // metres, square cells
	Rows     int
	Cols     int
	Values   []float64 // len = Rows*Cols, NoData where unset
}

// NewGrid allocates a grid of the given geometry with all cells NoData.
func NewGrid(originX, originY, cellSize float64, rows, cols int) Grid {
	vals := make([]float64, rows*cols)
	for i := range vals {
		vals[i] = NoData
	}
	return Grid{
		OriginX:  originX,
		OriginY:  originY,
		CellSize: cellSize,
		Rows:     rows,
		Cols:     cols,
		Values:   vals,
	}
}

// Idx returns the flat index for (row, col).
func (g *Grid) Idx(row, col int) int {
	return row*g.Cols + col
}

// CellCenter returns the centre point of cell (row, col).
func (g *Grid) CellCenter(row, col int) geom.Point {
	return geom.Pt(
		g.OriginX+(float64(col)+0.5)*g.CellSize,
		g.OriginY+(float64(row)+0.5)*g.CellSize,
	)
}

// CellAt returns the (row, col) containing the point and whether it lies
// within the grid extent.
func (g *Grid) CellAt(pt geom.Point) (row, col int, ok bool) {
	col = int(math.Floor((pt.X - g.OriginX) / g.CellSize))
	row = int(math.Floor((pt.Y - g.OriginY) / g.CellSize))
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return 0, 0, false
	}
	return row, col, true
}

// At returns the value of the cell containing pt, or NoData when pt is
// outside the grid.
func (g *Grid) At(pt geom.Point) float64 {
	row, col, ok := g.CellAt(pt)
	if !ok {
		return NoData
	}
	return g.Values[g.Idx(row, col)]
}

// Valid reports whether v is a usable cell value.
func Valid(v float64) bool {
	return !math.IsNaN(v)
}

// ValidCount returns the number of non-NoData cells.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Values {
		if Valid(v) {
			n++
		}
	}
	return n
}

// CellArea returns the area of one cell in square metres.
func (g *Grid) CellArea() float64 {
	return g.CellSize * g.CellSize
}

// SameGeometry reports whether the two grids share origin, cell size and
// dimensions.
func (g *Grid) SameGeometry(o *Grid) bool {
	return g.OriginX == o.OriginX && g.OriginY == o.OriginY &&
		g.CellSize == o.CellSize && g.Rows == o.Rows && g.Cols == o.Cols
}
