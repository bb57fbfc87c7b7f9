// Package roadnet routes grade-constrained access roads from a site entry to
// placed assets over the analyzed terrain raster.
package roadnet

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// gridGraph exposes the terrain raster to gonum's search algorithms as a
// weighted 8-connected graph. Node IDs are flat cell indices. Edges steeper
// than the grade limit do not exist; surviving edges are weighted by length
// with a quadratic grade penalty so flatter detours beat steep direct runs.
type gridGraph struct {
	g           *terrain.Grid
	slope       *terrain.Grid
	maxGradePct float64
	penalty     float64
	blocked     []bool // NoData or excluded cells
}

var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

func newGridGraph(model *terrain.Model, excl *exclusion.Index, maxGradePct, penalty float64) *gridGraph {
	g := &model.Elevation
	gg := &gridGraph{
		g:           g,
		slope:       &model.SlopeDeg,
		maxGradePct: maxGradePct,
		penalty:     penalty,
		blocked:     make([]bool, len(g.Values)),
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := g.Idx(r, c)
			if !terrain.Valid(g.Values[i]) {
				gg.blocked[i] = true
				continue
			}
			if excl != nil && excl.IsExcludedPoint(g.CellCenter(r, c)) {
				gg.blocked[i] = true
			}
		}
	}
	return gg
}

func (gg *gridGraph) usable(id int64) bool {
	return id >= 0 && id < int64(len(gg.blocked)) && !gg.blocked[id]
}

func (gg *gridGraph) rowCol(id int64) (int, int) {
	return int(id) / gg.g.Cols, int(id) % gg.g.Cols
}

// dist is the centre-to-centre distance between two cells in metres.
func (gg *gridGraph) dist(u, v int64) float64 {
	ur, uc := gg.rowCol(u)
	vr, vc := gg.rowCol(v)
	return math.Hypot(float64(ur-vr), float64(uc-vc)) * gg.g.CellSize
}

// gradePct is the grade between two distinct usable cells in percent.
func (gg *gridGraph) gradePct(u, v int64) float64 {
	dz := math.Abs(gg.g.Values[u] - gg.g.Values[v])
	return dz / gg.dist(u, v) * 100
}

func (gg *gridGraph) adjacent(u, v int64) bool {
	if u == v {
		return false
	}
	ur, uc := gg.rowCol(u)
	vr, vc := gg.rowCol(v)
	dr, dc := ur-vr, uc-vc
	return dr >= -1 && dr <= 1 && dc >= -1 && dc <= 1
}

func (gg *gridGraph) traversable(u, v int64) bool {
	return gg.usable(u) && gg.usable(v) && gg.adjacent(u, v) &&
		gg.gradePct(u, v) <= gg.maxGradePct
}

// nearestUsableCell finds a routable cell for a terminal position, searching
// outward in rings when the containing cell is blocked. Positions outside the
// raster clamp to its edge first.
func (gg *gridGraph) nearestUsableCell(x, y float64) (int64, bool) {
	c := int(math.Floor((x - gg.g.OriginX) / gg.g.CellSize))
	r := int(math.Floor((y - gg.g.OriginY) / gg.g.CellSize))
	c = min(max(c, 0), gg.g.Cols-1)
	r = min(max(r, 0), gg.g.Rows-1)

	const maxRing = 5
	for ring := 0; ring <= maxRing; ring++ {
		best := int64(-1)
		bestD := math.Inf(1)
		for dr := -ring; dr <= ring; dr++ {
			for dc := -ring; dc <= ring; dc++ {
				if max(abs(dr), abs(dc)) != ring {
					continue
				}
				nr, nc := r+dr, c+dc
				if nr < 0 || nr >= gg.g.Rows || nc < 0 || nc >= gg.g.Cols {
					continue
				}
				id := int64(gg.g.Idx(nr, nc))
				if !gg.usable(id) {
					continue
				}
				ctr := gg.g.CellCenter(nr, nc)
				if d := math.Hypot(ctr.X-x, ctr.Y-y); d < bestD {
					bestD, best = d, id
				}
			}
		}
		if best >= 0 {
			return best, true
		}
	}
	return 0, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Node implements graph.Graph.
func (gg *gridGraph) Node(id int64) graph.Node {
	if !gg.usable(id) {
		return nil
	}
	return simple.Node(id)
}

// Nodes implements graph.Graph.
func (gg *gridGraph) Nodes() graph.Nodes {
	var nodes []graph.Node
	for i := range gg.blocked {
		if !gg.blocked[i] {
			nodes = append(nodes, simple.Node(i))
		}
	}
	return iterator.NewOrderedNodes(nodes)
}

// From implements graph.Graph.
func (gg *gridGraph) From(id int64) graph.Nodes {
	if !gg.usable(id) {
		return graph.Empty
	}
	r, c := gg.rowCol(id)
	var out []graph.Node
	for _, d := range neighborOffsets {
		nr, nc := r+d[0], c+d[1]
		if nr < 0 || nr >= gg.g.Rows || nc < 0 || nc >= gg.g.Cols {
			continue
		}
		nid := int64(gg.g.Idx(nr, nc))
		if gg.usable(nid) && gg.gradePct(id, nid) <= gg.maxGradePct {
			out = append(out, simple.Node(nid))
		}
	}
	if len(out) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(out)
}

// HasEdgeBetween implements graph.Graph.
func (gg *gridGraph) HasEdgeBetween(x, y int64) bool {
	return gg.traversable(x, y)
}

// Edge implements graph.Graph.
func (gg *gridGraph) Edge(u, v int64) graph.Edge {
	if e := gg.WeightedEdge(u, v); e != nil {
		return e
	}
	return nil
}

// WeightedEdge implements graph.Weighted.
func (gg *gridGraph) WeightedEdge(u, v int64) graph.WeightedEdge {
	if !gg.traversable(u, v) {
		return nil
	}
	w, _ := gg.Weight(u, v)
	return simple.WeightedEdge{F: simple.Node(u), T: simple.Node(v), W: w}
}

// Weight implements graph.Weighted.
func (gg *gridGraph) Weight(x, y int64) (float64, bool) {
	if x == y {
		return 0, true
	}
	if !gg.traversable(x, y) {
		return math.Inf(1), false
	}
	rel := gg.gradePct(x, y) / gg.maxGradePct
	return gg.dist(x, y) * (1 + gg.penalty*rel*rel), true
}
