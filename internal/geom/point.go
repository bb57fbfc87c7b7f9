// Package geom provides the planar primitives used across the layout
// pipeline: points, polygons with holes, polylines, and the distance and
// intersection predicates the placement and routing stages depend on.
//
// All coordinates are metres in a projected CRS. The core never reprojects;
// callers hand in planar geometry (see terrain.UnprojectedInputError).
package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// Point is a planar point in metres.
type Point = r2.Point

// Rect is an axis-aligned bounding rectangle.
type Rect = r2.Rect

// Pt is shorthand for constructing a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// RectFrom returns the axis-aligned rectangle spanned by the given points.
func RectFrom(pts ...Point) Rect {
	return r2.RectFromPoints(pts...)
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return a.Sub(b).Norm()
}

// DistPointSeg returns the distance from p to the segment (a, b).
func DistPointSeg(p, a, b Point) float64 {
	ab := b.Sub(a)
	len2 := ab.Dot(ab)
	if len2 == 0 {
		return Dist(p, a)
	}
	t := p.Sub(a).Dot(ab) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Dist(p, a.Add(ab.Mul(t)))
}

// DistSegSeg returns the minimum distance between segments (a1, a2) and
// (b1, b2). Zero if they intersect.
func DistSegSeg(a1, a2, b1, b2 Point) float64 {
	if SegmentsIntersect(a1, a2, b1, b2) {
		return 0
	}
	d := DistPointSeg(a1, b1, b2)
	if v := DistPointSeg(a2, b1, b2); v < d {
		d = v
	}
	if v := DistPointSeg(b1, a1, a2); v < d {
		d = v
	}
	if v := DistPointSeg(b2, a1, a2); v < d {
		d = v
	}
	return d
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether c, known to be collinear with (a, b), lies on it.
func onSegment(a, b, c Point) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}

// SegmentsIntersect reports whether segments (a1, a2) and (b1, b2) share any
// point. Touching endpoints count as intersection.
func SegmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

// Bearing returns the compass bearing in degrees (0 = north, clockwise)
// from a to b.
func Bearing(a, b Point) float64 {
	d := b.Sub(a)
	deg := math.Atan2(d.X, d.Y) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
