package placement

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// siteModel analyzes a synthetic square site with the given surface.
func siteModel(t *testing.T, size float64, fn func(x, y float64) float64) (geom.Polygon, *terrain.Model) {
	t.Helper()
	boundary := geom.RectPolygon(0, 0, size, size)
	src := &terrain.FuncSource{
		Extent: geom.RectFrom(geom.Pt(-50, -50), geom.Pt(size+50, size+50)),
		Res:    10,
		Fn:     fn,
	}
	m, err := terrain.Analyze(boundary, src, terrain.AnalyzeOptions{CellSize: 10})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return boundary, m
}

func flat100(x, y float64) float64 { return 100 }

func containerSpec() AssetSpec {
	return AssetSpec{
		WidthM:      2.5,
		LengthM:     12,
		Count:       10,
		MinSpacingM: 10,
		MaxSlopeDeg: 5,
	}
}

func checkInvariants(t *testing.T, boundary geom.Polygon, res *Result) {
	t.Helper()
	for _, p := range res.Placed {
		if !boundary.ContainsPolygon(p.Footprint) {
			t.Errorf("asset %d footprint leaves the boundary", p.ID)
		}
	}
	for i := 0; i < len(res.Placed); i++ {
		for j := i + 1; j < len(res.Placed); j++ {
			d := geom.Dist(res.Placed[i].Center, res.Placed[j].Center)
			if d < res.Spec.MinSpacingM {
				t.Errorf("assets %d and %d are %.1fm apart, want >= %.1fm",
					res.Placed[i].ID, res.Placed[j].ID, d, res.Spec.MinSpacingM)
			}
			if res.Placed[i].Footprint.Intersects(res.Placed[j].Footprint) {
				t.Errorf("assets %d and %d overlap", res.Placed[i].ID, res.Placed[j].ID)
			}
		}
	}
}

func TestPlaceFlatSite(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	res, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
		containerSpec(), ObjectiveMaximizeFlatAreas, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if res.PlacedCount != 10 {
		t.Fatalf("PlacedCount = %d, want 10", res.PlacedCount)
	}
	if res.SuccessRatePct != 100 {
		t.Errorf("SuccessRatePct = %.1f, want 100", res.SuccessRatePct)
	}
	if res.SelectionPassType != "heap" {
		t.Errorf("SelectionPassType = %q, want heap", res.SelectionPassType)
	}
	for _, p := range res.Placed {
		if p.SlopeDeg > 0.1 {
			t.Errorf("asset %d on flat terrain has slope %.3f deg", p.ID, p.SlopeDeg)
		}
		if math.Abs(p.ElevationM-100) > 0.01 {
			t.Errorf("asset %d elevation %.2f, want 100", p.ID, p.ElevationM)
		}
	}
	checkInvariants(t, boundary, res)
}

func TestPlaceAvoidsExclusionZone(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	// The western half of the site is a wetland.
	idx := exclusion.Build([]exclusion.Zone{{
		ID: "wet-1", Name: "west wetland", Kind: exclusion.KindWetland,
		Geom: geom.RectPolygon(0, 0, 250, 500), Active: true,
	}})

	res, err := Place(context.Background(), boundary, model, idx,
		containerSpec(), ObjectiveMinimizeCutFill, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.PlacedCount != 10 {
		t.Fatalf("PlacedCount = %d, want 10", res.PlacedCount)
	}
	for _, p := range res.Placed {
		if p.Center.X <= 250 {
			t.Errorf("asset %d at x=%.1f inside the excluded half", p.ID, p.Center.X)
		}
	}
	if res.Rejections[RejectExcludedZone] == 0 {
		t.Error("expected excluded_zone rejections on the western half")
	}
	checkInvariants(t, boundary, res)
}

func TestPlaceRespectsZoneBuffer(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	idx := exclusion.Build([]exclusion.Zone{{
		ID: "stream-1", Kind: exclusion.KindStreamBuffer,
		Geom: geom.RectPolygon(0, 0, 250, 500), BufferM: 25, Active: true,
	}})

	res, err := Place(context.Background(), boundary, model, idx,
		containerSpec(), ObjectiveMaximizeFlatAreas, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	for _, p := range res.Placed {
		if p.Center.X <= 275 {
			t.Errorf("asset %d at x=%.1f inside the 25m buffer", p.ID, p.Center.X)
		}
	}
}

func TestPlaceOversizedFootprint(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	spec := containerSpec()
	spec.WidthM, spec.LengthM = 600, 600

	_, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
		spec, ObjectiveBalanced, Options{})
	var infeasible *InfeasibleConstraintError
	if !errors.As(err, &infeasible) {
		t.Fatalf("Place err = %v, want InfeasibleConstraintError", err)
	}
}

func TestPlaceUnderPlacementIsNotAnError(t *testing.T) {
	// 20% grade, about 11.3 degrees everywhere; max slope 5 rejects all.
	boundary, model := siteModel(t, 500, func(x, y float64) float64 {
		return 100 + 0.2*x
	})
	res, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
		containerSpec(), ObjectiveMaximizeFlatAreas, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.PlacedCount != 0 {
		t.Fatalf("PlacedCount = %d on uniformly steep terrain, want 0", res.PlacedCount)
	}
	if res.Rejections[RejectSlopeExceeded] == 0 {
		t.Error("expected slope_exceeded rejections")
	}
}

func TestPlaceClusteringObjective(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	spec := containerSpec()
	spec.Count = 5
	spec.MinSpacingM = 20

	res, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
		spec, ObjectiveMinimizeInterAssetDistance, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.SelectionPassType != "rescan" {
		t.Errorf("SelectionPassType = %q, want rescan", res.SelectionPassType)
	}
	if res.PlacedCount != 5 {
		t.Fatalf("PlacedCount = %d, want 5", res.PlacedCount)
	}
	// Five assets at 20m spacing cluster far tighter than the 500m site.
	if res.MeanInterAssetM > 100 {
		t.Errorf("MeanInterAssetM = %.1f, want tight cluster under 100m", res.MeanInterAssetM)
	}
	checkInvariants(t, boundary, res)
}

func TestPlaceDeterministic(t *testing.T) {
	boundary, model := siteModel(t, 500, func(x, y float64) float64 {
		return 100 + 0.01*x + 2*math.Sin(x/80)*math.Cos(y/95)
	})
	spec := containerSpec()
	spec.Count = 6

	run := func(workers int) *Result {
		res, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
			spec, ObjectiveBalanced, Options{Workers: workers})
		if err != nil {
			t.Fatalf("Place: %v", err)
		}
		return res
	}

	a := run(1)
	b := run(8)
	if diff := cmp.Diff(a.Placed, b.Placed); diff != "" {
		t.Errorf("placements differ across worker counts (-1 worker +8 workers):\n%s", diff)
	}
	if diff := cmp.Diff(a.Rejections, b.Rejections); diff != "" {
		t.Errorf("rejection tallies differ across worker counts:\n%s", diff)
	}
	c := run(8)
	if diff := cmp.Diff(b.Placed, c.Placed); diff != "" {
		t.Errorf("repeated run differs:\n%s", diff)
	}
}

func TestPlaceCancellation(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Place(ctx, boundary, model, exclusion.Build(nil),
		containerSpec(), ObjectiveBalanced, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Place on cancelled ctx err = %v, want context.Canceled", err)
	}
}

func TestPlaceInvalidSpec(t *testing.T) {
	boundary, model := siteModel(t, 500, flat100)
	spec := containerSpec()
	spec.Count = 0
	if _, err := Place(context.Background(), boundary, model, exclusion.Build(nil),
		spec, ObjectiveBalanced, Options{}); err == nil {
		t.Fatal("Place with zero count should fail validation")
	}
}
