package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// Polygon is a simple polygon with optional holes. The outer ring and holes
// are open (the closing vertex is implied). Winding order is not significant;
// area and containment are computed winding-agnostic.
type Polygon struct {
	Outer []Point
	Holes [][]Point
}

// NewPolygon creates a polygon from outer ring vertices.
func NewPolygon(pts ...Point) Polygon {
	return Polygon{Outer: pts}
}

// RectPolygon returns the axis-aligned rectangle (minX, minY)-(maxX, maxY)
// as a polygon.
func RectPolygon(minX, minY, maxX, maxY float64) Polygon {
	return NewPolygon(Pt(minX, minY), Pt(maxX, minY), Pt(maxX, maxY), Pt(minX, maxY))
}

// FootprintRect returns the rectangular footprint of width w and length l
// centred on c, rotated to the given compass bearing in degrees. At bearing
// zero the length axis runs north-south.
func FootprintRect(c Point, w, l, bearingDeg float64) Polygon {
	rad := bearingDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	hw, hl := w/2, l/2
	corners := [4]Point{
		{X: -hw, Y: -hl},
		{X: hw, Y: -hl},
		{X: hw, Y: hl},
		{X: -hw, Y: hl},
	}
	out := make([]Point, 4)
	for i, p := range corners {
		// Clockwise rotation matches compass bearing convention.
		out[i] = Pt(c.X+p.X*cos+p.Y*sin, c.Y-p.X*sin+p.Y*cos)
	}
	return Polygon{Outer: out}
}

// IsEmpty reports whether the polygon has fewer than 3 outer vertices.
func (p Polygon) IsEmpty() bool {
	return len(p.Outer) < 3
}

func ringArea(ring []Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return area / 2
}

// Area returns the unsigned area of the polygon minus its holes.
func (p Polygon) Area() float64 {
	a := math.Abs(ringArea(p.Outer))
	for _, h := range p.Holes {
		a -= math.Abs(ringArea(h))
	}
	if a < 0 {
		return 0
	}
	return a
}

// Centroid returns the area centroid of the outer ring.
func (p Polygon) Centroid() Point {
	n := len(p.Outer)
	if n == 0 {
		return Point{}
	}
	a := ringArea(p.Outer)
	if n < 3 || math.Abs(a) < 1e-12 {
		// Degenerate: vertex average.
		var sum Point
		for _, v := range p.Outer {
			sum = sum.Add(v)
		}
		return sum.Mul(1.0 / float64(n))
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cr := p.Outer[i].X*p.Outer[j].Y - p.Outer[j].X*p.Outer[i].Y
		cx += (p.Outer[i].X + p.Outer[j].X) * cr
		cy += (p.Outer[i].Y + p.Outer[j].Y) * cr
	}
	f := 1.0 / (6.0 * a)
	return Pt(cx*f, cy*f)
}

// BoundingRect returns the axis-aligned bounding rectangle of the outer ring.
func (p Polygon) BoundingRect() Rect {
	if len(p.Outer) == 0 {
		return r2.EmptyRect()
	}
	r := r2.RectFromPoints(p.Outer[0])
	for _, v := range p.Outer[1:] {
		r = r.AddPoint(v)
	}
	return r
}

func ringContains(ring []Point, pt Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Contains reports whether pt is strictly inside the polygon (and outside
// all holes) using ray casting.
func (p Polygon) Contains(pt Point) bool {
	if !ringContains(p.Outer, pt) {
		return false
	}
	for _, h := range p.Holes {
		if ringContains(h, pt) {
			return false
		}
	}
	return true
}

// rings returns the outer ring plus holes.
func (p Polygon) rings() [][]Point {
	out := make([][]Point, 0, 1+len(p.Holes))
	out = append(out, p.Outer)
	out = append(out, p.Holes...)
	return out
}

// edgesIntersect reports whether any edge of a crosses any edge of b.
func edgesIntersect(a, b Polygon) bool {
	for _, ra := range a.rings() {
		na := len(ra)
		for i := 0; i < na; i++ {
			a1, a2 := ra[i], ra[(i+1)%na]
			for _, rb := range b.rings() {
				nb := len(rb)
				for j := 0; j < nb; j++ {
					if SegmentsIntersect(a1, a2, rb[j], rb[(j+1)%nb]) {
						return true
					}
				}
			}
		}
	}
	return false
}

// Intersects reports whether the two polygons share any point. Touching
// boundaries count as intersection.
func (p Polygon) Intersects(q Polygon) bool {
	if p.IsEmpty() || q.IsEmpty() {
		return false
	}
	if !p.BoundingRect().Intersects(q.BoundingRect()) {
		return false
	}
	if edgesIntersect(p, q) {
		return true
	}
	// No edge crossings: one may fully contain the other.
	return p.Contains(q.Outer[0]) || q.Contains(p.Outer[0])
}

// ContainsPolygon reports whether q lies entirely inside p: every vertex of
// q is inside p and no edges cross.
func (p Polygon) ContainsPolygon(q Polygon) bool {
	if p.IsEmpty() || q.IsEmpty() {
		return false
	}
	for _, v := range q.Outer {
		if !p.Contains(v) {
			return false
		}
	}
	return !edgesIntersect(p, q)
}

// DistanceTo returns the minimum distance between the boundaries of p and q,
// or 0 if the polygons intersect or one contains the other.
func (p Polygon) DistanceTo(q Polygon) float64 {
	if p.Intersects(q) {
		return 0
	}
	min := math.Inf(1)
	for _, ra := range p.rings() {
		na := len(ra)
		for i := 0; i < na; i++ {
			a1, a2 := ra[i], ra[(i+1)%na]
			for _, rb := range q.rings() {
				nb := len(rb)
				for j := 0; j < nb; j++ {
					if d := DistSegSeg(a1, a2, rb[j], rb[(j+1)%nb]); d < min {
						min = d
					}
				}
			}
		}
	}
	return min
}

// DistanceToPoint returns the distance from pt to the polygon boundary, or 0
// if pt is inside.
func (p Polygon) DistanceToPoint(pt Point) float64 {
	if p.Contains(pt) {
		return 0
	}
	min := math.Inf(1)
	for _, ring := range p.rings() {
		n := len(ring)
		for i := 0; i < n; i++ {
			if d := DistPointSeg(pt, ring[i], ring[(i+1)%n]); d < min {
				min = d
			}
		}
	}
	return min
}
