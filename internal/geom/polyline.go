package geom

import "math"

// Polyline is an ordered sequence of points describing an open path.
type Polyline []Point

// Length returns the total path length.
func (pl Polyline) Length() float64 {
	total := 0.0
	for i := 1; i < len(pl); i++ {
		total += Dist(pl[i-1], pl[i])
	}
	return total
}

// PointAt returns the point at distance d along the path, clamped to the
// endpoints.
func (pl Polyline) PointAt(d float64) Point {
	if len(pl) == 0 {
		return Point{}
	}
	if d <= 0 {
		return pl[0]
	}
	for i := 1; i < len(pl); i++ {
		seg := Dist(pl[i-1], pl[i])
		if d <= seg && seg > 0 {
			t := d / seg
			return pl[i-1].Add(pl[i].Sub(pl[i-1]).Mul(t))
		}
		d -= seg
	}
	return pl[len(pl)-1]
}

// DistanceToPoint returns the minimum distance from pt to the path.
func (pl Polyline) DistanceToPoint(pt Point) float64 {
	if len(pl) == 0 {
		return math.Inf(1)
	}
	if len(pl) == 1 {
		return Dist(pl[0], pt)
	}
	min := math.Inf(1)
	for i := 1; i < len(pl); i++ {
		if d := DistPointSeg(pt, pl[i-1], pl[i]); d < min {
			min = d
		}
	}
	return min
}

// Simplify reduces the polyline with the Douglas-Peucker algorithm,
// dropping vertices within tolerance of the simplified path. Endpoints are
// always kept.
func (pl Polyline) Simplify(tolerance float64) Polyline {
	if len(pl) < 3 || tolerance <= 0 {
		return pl
	}
	keep := make([]bool, len(pl))
	keep[0], keep[len(pl)-1] = true, true
	simplifyRange(pl, 0, len(pl)-1, tolerance, keep)

	out := make(Polyline, 0, len(pl))
	for i, k := range keep {
		if k {
			out = append(out, pl[i])
		}
	}
	return out
}

func simplifyRange(pl Polyline, lo, hi int, tol float64, keep []bool) {
	if hi <= lo+1 {
		return
	}
	maxDist, maxIdx := 0.0, -1
	for i := lo + 1; i < hi; i++ {
		if d := DistPointSeg(pl[i], pl[lo], pl[hi]); d > maxDist {
			maxDist, maxIdx = d, i
		}
	}
	if maxDist > tol {
		keep[maxIdx] = true
		simplifyRange(pl, lo, maxIdx, tol, keep)
		simplifyRange(pl, maxIdx, hi, tol, keep)
	}
}

// Chaikin performs one round of Chaikin corner cutting, keeping endpoints
// fixed. Each interior corner is replaced by two points at 1/4 and 3/4 of
// the adjoining segments, rounding the path.
func (pl Polyline) Chaikin() Polyline {
	if len(pl) < 3 {
		return pl
	}
	out := make(Polyline, 0, 2*len(pl))
	out = append(out, pl[0])
	for i := 0; i < len(pl)-1; i++ {
		a, b := pl[i], pl[i+1]
		q := a.Mul(0.75).Add(b.Mul(0.25))
		r := a.Mul(0.25).Add(b.Mul(0.75))
		out = append(out, q, r)
	}
	out = append(out, pl[len(pl)-1])
	return out
}

// MinCurveRadius estimates the minimum radius of curvature over the path as
// the smallest circumradius of any three consecutive vertices. Straight (or
// near-straight) runs contribute +Inf.
func (pl Polyline) MinCurveRadius() float64 {
	min := math.Inf(1)
	for i := 1; i < len(pl)-1; i++ {
		if r := circumradius(pl[i-1], pl[i], pl[i+1]); r < min {
			min = r
		}
	}
	return min
}

// circumradius of the triangle (a, b, c); +Inf when collinear.
func circumradius(a, b, c Point) float64 {
	ab := Dist(a, b)
	bc := Dist(b, c)
	ca := Dist(c, a)
	area2 := math.Abs(cross(a, b, c))
	if area2 < 1e-12 {
		return math.Inf(1)
	}
	return ab * bc * ca / (2 * area2)
}
