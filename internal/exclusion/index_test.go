package exclusion

import (
	"fmt"
	"testing"

	"github.com/gridpoint-eng/siteplan/internal/geom"
)

func zone(id string, kind Kind, p geom.Polygon, buffer float64) Zone {
	return Zone{ID: id, Name: id, Kind: kind, Geom: p, BufferM: buffer, Active: true}
}

func TestPointExclusion(t *testing.T) {
	idx := Build([]Zone{
		zone("wet-1", KindWetland, geom.RectPolygon(0, 0, 100, 100), 0),
	})

	if !idx.IsExcludedPoint(geom.Pt(50, 50)) {
		t.Error("point inside zone should be excluded")
	}
	if idx.IsExcludedPoint(geom.Pt(150, 50)) {
		t.Error("point outside zone should not be excluded")
	}
	if !idx.IsExcludedPoint(geom.Pt(100, 50)) {
		t.Error("point on zone boundary should be excluded (touching counts)")
	}
}

func TestBufferedExclusion(t *testing.T) {
	idx := Build([]Zone{
		zone("stream-1", KindStreamBuffer, geom.RectPolygon(0, 0, 100, 100), 25),
	})

	if !idx.IsExcludedPoint(geom.Pt(120, 50)) {
		t.Error("point 20m from zone with 25m buffer should be excluded")
	}
	if idx.IsExcludedPoint(geom.Pt(130, 50)) {
		t.Error("point 30m from zone with 25m buffer should not be excluded")
	}

	// Footprint entirely outside the polygon but inside the buffer.
	fp := geom.RectPolygon(110, 40, 120, 60)
	if !idx.IsExcludedFootprint(fp) {
		t.Error("footprint within buffer distance should be excluded")
	}
	if idx.IsExcludedFootprint(geom.RectPolygon(200, 40, 210, 60)) {
		t.Error("footprint well clear of buffer should not be excluded")
	}
}

func TestTouchingFootprintExcluded(t *testing.T) {
	idx := Build([]Zone{
		zone("ease-1", KindEasement, geom.RectPolygon(0, 0, 100, 100), 0),
	})
	// Shares the x=100 edge with the zone without overlapping its interior.
	touching := geom.RectPolygon(100, 0, 200, 100)
	if !idx.IsExcludedFootprint(touching) {
		t.Error("footprint sharing an edge with a zone must be excluded")
	}
}

func TestInactiveZonesIgnored(t *testing.T) {
	z := zone("set-1", KindSetback, geom.RectPolygon(0, 0, 100, 100), 0)
	z.Active = false
	idx := Build([]Zone{z})
	if idx.ZoneCount() != 0 {
		t.Fatalf("ZoneCount = %d, want 0", idx.ZoneCount())
	}
	if idx.IsExcludedPoint(geom.Pt(50, 50)) {
		t.Error("inactive zone must not exclude")
	}
}

func TestQueryIntersecting(t *testing.T) {
	idx := Build([]Zone{
		zone("a", KindWetland, geom.RectPolygon(0, 0, 50, 50), 0),
		zone("b", KindCustom, geom.RectPolygon(100, 100, 150, 150), 0),
		zone("c", KindSetback, geom.RectPolygon(40, 40, 120, 120), 0),
	})

	hits := idx.QueryIntersecting(geom.RectPolygon(45, 45, 55, 55))
	got := map[string]bool{}
	for _, z := range hits {
		got[z.ID] = true
	}
	if !got["a"] || !got["c"] || got["b"] {
		t.Fatalf("QueryIntersecting hit %v, want a and c only", got)
	}
}

func TestIndexMatchesLinearScan(t *testing.T) {
	// Many small zones scattered on a lattice; the bucketed index must agree
	// with a brute-force check at every probe point.
	var zones []Zone
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			x := float64(i * 100)
			y := float64(j * 100)
			zones = append(zones, zone(
				fmt.Sprintf("z-%d-%d", i, j), KindCustom,
				geom.RectPolygon(x, y, x+30, y+30), 5))
		}
	}
	idx := Build(zones)

	for px := 0.0; px < 1000; px += 17 {
		for py := 0.0; py < 1000; py += 23 {
			pt := geom.Pt(px, py)
			want := false
			for i := range zones {
				if zones[i].containsPoint(pt) {
					want = true
					break
				}
			}
			if got := idx.IsExcludedPoint(pt); got != want {
				t.Fatalf("point %v: index says %v, linear scan says %v", pt, got, want)
			}
		}
	}
}
