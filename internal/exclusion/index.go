package exclusion

import (
	"math"

	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
)

// Index answers exclusion queries in sub-linear time by bucketing zone
// bounding boxes (buffer included) onto a coarse grid. Build once per run;
// queries are read-only and safe for concurrent use.
type Index struct {
	zones   []*Zone // active zones only
	bucketW float64
	originX float64
	originY float64
	cols    int
	rows    int
	buckets [][]int // zone indices per bucket cell
}

// defaultBucketCount is the target bucket grid dimension along the longer
// extent axis.
const defaultBucketCount = 64

// Build constructs the index over the active zones. Buffering is resolved
// here, not per query.
func Build(zones []Zone) *Index {
	idx := &Index{}
	var rect geom.Rect
	first := true
	for i := range zones {
		if !zones[i].Active {
			continue
		}
		z := zones[i]
		idx.zones = append(idx.zones, &z)
		er := z.effectiveRect()
		if first {
			rect = er
			first = false
		} else {
			rect = rect.Union(er)
		}
	}
	if len(idx.zones) == 0 {
		return idx
	}

	spanX := rect.X.Hi - rect.X.Lo
	spanY := rect.Y.Hi - rect.Y.Lo
	span := math.Max(spanX, spanY)
	if span <= 0 {
		span = 1
	}
	idx.bucketW = span / defaultBucketCount
	idx.originX = rect.X.Lo
	idx.originY = rect.Y.Lo
	idx.cols = int(math.Ceil(spanX/idx.bucketW)) + 1
	idx.rows = int(math.Ceil(spanY/idx.bucketW)) + 1
	idx.buckets = make([][]int, idx.cols*idx.rows)

	for zi, z := range idx.zones {
		er := z.effectiveRect()
		c0, r0 := idx.bucketAt(er.X.Lo, er.Y.Lo)
		c1, r1 := idx.bucketAt(er.X.Hi, er.Y.Hi)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				b := r*idx.cols + c
				idx.buckets[b] = append(idx.buckets[b], zi)
			}
		}
	}

	monitoring.Logf("[Exclusion] indexed %d active zones into %dx%d buckets (%.1fm)",
		len(idx.zones), idx.rows, idx.cols, idx.bucketW)
	return idx
}

// bucketAt clamps the point into bucket coordinates.
func (idx *Index) bucketAt(x, y float64) (col, row int) {
	col = int((x - idx.originX) / idx.bucketW)
	row = int((y - idx.originY) / idx.bucketW)
	if col < 0 {
		col = 0
	}
	if col >= idx.cols {
		col = idx.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= idx.rows {
		row = idx.rows - 1
	}
	return col, row
}

// candidates returns the deduplicated zone indices whose effective boxes
// may overlap the query rectangle.
func (idx *Index) candidates(r geom.Rect) []int {
	if len(idx.zones) == 0 {
		return nil
	}
	c0, r0 := idx.bucketAt(r.X.Lo, r.Y.Lo)
	c1, r1 := idx.bucketAt(r.X.Hi, r.Y.Hi)
	seen := map[int]bool{}
	var out []int
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			for _, zi := range idx.buckets[row*idx.cols+col] {
				if !seen[zi] {
					seen[zi] = true
					out = append(out, zi)
				}
			}
		}
	}
	return out
}

// ZoneCount returns the number of active zones in the index.
func (idx *Index) ZoneCount() int {
	return len(idx.zones)
}

// IsExcludedPoint reports whether the point falls inside any zone's
// effective geometry.
func (idx *Index) IsExcludedPoint(pt geom.Point) bool {
	for _, zi := range idx.candidates(geom.RectFrom(pt)) {
		z := idx.zones[zi]
		if z.effectiveRect().ContainsPoint(pt) && z.containsPoint(pt) {
			return true
		}
	}
	return false
}

// IsExcludedFootprint reports whether the polygon overlaps, touches, or
// falls within the buffer distance of any zone.
func (idx *Index) IsExcludedFootprint(fp geom.Polygon) bool {
	br := fp.BoundingRect()
	for _, zi := range idx.candidates(br) {
		z := idx.zones[zi]
		if !z.effectiveRect().Intersects(br) {
			continue
		}
		if z.intersectsPolygon(fp) {
			return true
		}
	}
	return false
}

// QueryIntersecting returns every zone whose effective geometry intersects
// the polygon.
func (idx *Index) QueryIntersecting(p geom.Polygon) []*Zone {
	br := p.BoundingRect()
	var out []*Zone
	for _, zi := range idx.candidates(br) {
		z := idx.zones[zi]
		if z.effectiveRect().Intersects(br) && z.intersectsPolygon(p) {
			out = append(out, z)
		}
	}
	return out
}
