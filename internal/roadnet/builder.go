package roadnet

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	gpath "gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// Params tune routing and geometry. Zero values take defaults.
type Params struct {
	MaxGradePct     float64 // default 8
	RoadWidthM      float64 // default 6
	MinCurveRadiusM float64 // default 25
	// SimplifyTolM is the Douglas-Peucker tolerance applied before
	// smoothing. Default: half the terrain cell size.
	SimplifyTolM float64
	// GradePenalty scales the quadratic penalty on steep edges. Default 4.
	GradePenalty float64
}

func (p *Params) applyDefaults(cell float64) {
	if p.MaxGradePct <= 0 {
		p.MaxGradePct = 8
	}
	if p.RoadWidthM <= 0 {
		p.RoadWidthM = 6
	}
	if p.MinCurveRadiusM <= 0 {
		p.MinCurveRadiusM = 25
	}
	if p.SimplifyTolM <= 0 {
		p.SimplifyTolM = cell / 2
	}
	if p.GradePenalty <= 0 {
		p.GradePenalty = 4
	}
}

// Terminal is a point the network must reach: the site entry or an asset.
type Terminal struct {
	ID  string     `json:"id"`
	Pos geom.Point `json:"pos"`
}

// Segment is one routed road between two terminals.
type Segment struct {
	ID              int             `json:"id"`
	FromID          string          `json:"from_id"`
	ToID            string          `json:"to_id"`
	Path            geom.Polyline   `json:"path"`
	LengthM         float64         `json:"length_m"`
	MeanGradePct    float64         `json:"mean_grade_pct"`
	MaxGradePct     float64         `json:"max_grade_pct"`
	MinCurveRadiusM float64         `json:"min_curve_radius_m"`
	GradeCompliant  bool            `json:"grade_compliant"`
	Profile         terrain.Profile `json:"profile"`
}

// Network is the full road layout for a site.
type Network struct {
	Entry          Terminal  `json:"entry"`
	Segments       []Segment `json:"segments"`
	TotalLengthM   float64   `json:"total_length_m"`
	WidthM         float64   `json:"width_m"`
	MaxGradePct    float64   `json:"max_grade_pct"` // steepest sampled grade
	GradeCompliant bool      `json:"grade_compliant"`
}

// UnreachableAssetError is returned when no grade-compliant route exists
// between the entry and an asset.
type UnreachableAssetError struct {
	AssetID     string
	Pos         geom.Point
	MaxGradePct float64
	Reason      string
}

func (e *UnreachableAssetError) Error() string {
	return fmt.Sprintf("asset %s at (%.0f, %.0f) unreachable: %s (max grade %.1f%%)",
		e.AssetID, e.Pos.X, e.Pos.Y, e.Reason, e.MaxGradePct)
}

// smoothingRounds bounds Chaikin refinement per segment.
const smoothingRounds = 4

// Build routes a road network connecting the entry to every asset terminal.
// The topology is a minimum spanning tree over straight-line terminal
// distances; each tree edge is then routed over the terrain raster with A*,
// avoiding exclusion zones and edges above the grade limit. Routed paths are
// simplified and smoothed toward the minimum curve radius, and per-segment
// grade profiles are sampled from the terrain.
func Build(ctx context.Context, model *terrain.Model, excl *exclusion.Index,
	entry Terminal, assets []Terminal, p Params) (*Network, error) {

	p.applyDefaults(model.Elevation.CellSize)
	net := &Network{Entry: entry, WidthM: p.RoadWidthM, GradeCompliant: true}
	if len(assets) == 0 {
		return net, nil
	}

	gg := newGridGraph(model, excl, p.MaxGradePct, p.GradePenalty)

	terminals := append([]Terminal{entry}, assets...)
	cells := make([]int64, len(terminals))
	for i, tm := range terminals {
		id, ok := gg.nearestUsableCell(tm.Pos.X, tm.Pos.Y)
		if !ok {
			return nil, &UnreachableAssetError{
				AssetID: tm.ID, Pos: tm.Pos, MaxGradePct: p.MaxGradePct,
				Reason: "no routable terrain cell near terminal",
			}
		}
		cells[i] = id
	}

	mstEdges := spanningEdges(terminals)

	heur := func(x, y graph.Node) float64 { return gg.dist(x.ID(), y.ID()) }
	segID := 0
	for _, e := range mstEdges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i, j := e[0], e[1]
		pth, _ := gpath.AStar(simple.Node(cells[i]), simple.Node(cells[j]), gg, heur)
		nodes, w := pth.To(cells[j])
		if math.IsInf(w, 1) || len(nodes) == 0 {
			return nil, &UnreachableAssetError{
				AssetID: terminals[j].ID, Pos: terminals[j].Pos,
				MaxGradePct: p.MaxGradePct,
				Reason:      fmt.Sprintf("no grade-compliant route from %s", terminals[i].ID),
			}
		}

		line := routeLine(gg, nodes, terminals[i].Pos, terminals[j].Pos)
		line = line.Simplify(p.SimplifyTolM)
		for round := 0; round < smoothingRounds; round++ {
			if line.MinCurveRadius() >= p.MinCurveRadiusM {
				break
			}
			line = line.Chaikin()
		}

		segID++
		seg := buildSegment(segID, terminals[i].ID, terminals[j].ID, line, model, p)
		net.Segments = append(net.Segments, seg)
		net.TotalLengthM += seg.LengthM
		net.MaxGradePct = math.Max(net.MaxGradePct, seg.MaxGradePct)
		if !seg.GradeCompliant {
			net.GradeCompliant = false
		}
	}

	monitoring.Logf("[RoadNet] routed %d segments, %.0fm total, max grade %.1f%% (compliant=%v)",
		len(net.Segments), net.TotalLengthM, net.MaxGradePct, net.GradeCompliant)
	return net, nil
}

// spanningEdges returns MST edges over straight-line terminal distances as
// deterministic (from, to) index pairs with from < to. Terminal 0 is the
// entry.
func spanningEdges(terminals []Terminal) [][2]int {
	full := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := range terminals {
		full.AddNode(simple.Node(i))
	}
	for i := 0; i < len(terminals); i++ {
		for j := i + 1; j < len(terminals); j++ {
			full.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(i), T: simple.Node(j),
				W: geom.Dist(terminals[i].Pos, terminals[j].Pos),
			})
		}
	}

	mst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	gpath.Kruskal(mst, full)

	var edges [][2]int
	it := mst.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		i, j := int(e.From().ID()), int(e.To().ID())
		if i > j {
			i, j = j, i
		}
		edges = append(edges, [2]int{i, j})
	}
	// The graph iterates edges in map order; fix it.
	sort.Slice(edges, func(a, b int) bool {
		if edges[a][0] != edges[b][0] {
			return edges[a][0] < edges[b][0]
		}
		return edges[a][1] < edges[b][1]
	})
	return edges
}

// routeLine converts an A* node path into a polyline anchored on the exact
// terminal positions.
func routeLine(gg *gridGraph, nodes []graph.Node, from, to geom.Point) geom.Polyline {
	line := geom.Polyline{from}
	for _, n := range nodes[1 : max(len(nodes)-1, 1)] {
		r, c := gg.rowCol(n.ID())
		line = append(line, gg.g.CellCenter(r, c))
	}
	line = append(line, to)
	return line
}

// buildSegment samples the grade profile along the final geometry.
func buildSegment(id int, fromID, toID string, line geom.Polyline,
	model *terrain.Model, p Params) Segment {

	n := int(line.Length()/model.Elevation.CellSize) + 2
	if n < 8 {
		n = 8
	}
	prof := model.PathProfile(line, n)
	maxG, meanG := profileGrades(prof)

	return Segment{
		ID:              id,
		FromID:          fromID,
		ToID:            toID,
		Path:            line,
		LengthM:         line.Length(),
		MeanGradePct:    meanG,
		MaxGradePct:     maxG,
		MinCurveRadiusM: line.MinCurveRadius(),
		GradeCompliant:  maxG <= p.MaxGradePct+1e-9,
		Profile:         prof,
	}
}

// profileGrades returns the steepest and length-weighted mean grade in
// percent over consecutive valid profile samples.
func profileGrades(prof terrain.Profile) (maxPct, meanPct float64) {
	var riseSum, runSum float64
	for i := 1; i < len(prof.Points); i++ {
		a, b := prof.Points[i-1], prof.Points[i]
		run := b.Distance - a.Distance
		if run <= 0 || !terrain.Valid(a.Elevation) || !terrain.Valid(b.Elevation) {
			continue
		}
		rise := math.Abs(b.Elevation - a.Elevation)
		maxPct = math.Max(maxPct, rise/run*100)
		riseSum += rise
		runSum += run
	}
	if runSum > 0 {
		meanPct = riseSum / runSum * 100
	}
	return maxPct, meanPct
}
