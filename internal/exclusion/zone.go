// Package exclusion indexes exclusion zones for fast containment and
// intersection queries during placement and routing.
package exclusion

import (
	"github.com/gridpoint-eng/siteplan/internal/geom"
)

// Kind classifies an exclusion zone.
type Kind string

const (
	KindWetland      Kind = "wetland"
	KindEasement     Kind = "easement"
	KindStreamBuffer Kind = "stream_buffer"
	KindSetback      Kind = "setback"
	KindCustom       Kind = "custom"
)

// Zone is one exclusion area. BufferM expands the effective geometry: a
// location within BufferM of the polygon is treated as inside the zone
// (round-join buffer semantics). Inactive zones are ignored by the index.
type Zone struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    Kind         `json:"kind"`
	Geom    geom.Polygon `json:"geom"`
	BufferM float64      `json:"buffer_m"`
	Active  bool         `json:"active"`
}

// effectiveRect is the zone bounding box expanded by the buffer; computed
// once at index build time.
func (z *Zone) effectiveRect() geom.Rect {
	r := z.Geom.BoundingRect()
	b := z.BufferM
	if b < 0 {
		b = 0
	}
	return geom.RectFrom(
		geom.Pt(r.X.Lo-b, r.Y.Lo-b),
		geom.Pt(r.X.Hi+b, r.Y.Hi+b),
	)
}

// containsPoint reports whether pt falls inside the effective geometry:
// inside the polygon or within the buffer distance of it. Points exactly on
// the boundary count as inside (conservative policy).
func (z *Zone) containsPoint(pt geom.Point) bool {
	return z.Geom.DistanceToPoint(pt) <= z.BufferM
}

// intersectsPolygon reports whether p overlaps, touches, or comes within the
// buffer distance of the zone geometry. Touching counts: a footprint sharing
// an edge with a sensitive area is excluded.
func (z *Zone) intersectsPolygon(p geom.Polygon) bool {
	if z.BufferM <= 0 {
		return z.Geom.Intersects(p)
	}
	return z.Geom.DistanceTo(p) <= z.BufferM
}
