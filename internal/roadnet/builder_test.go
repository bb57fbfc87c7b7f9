package roadnet

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

func siteModel(t *testing.T, size float64, fn func(x, y float64) float64) *terrain.Model {
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
	return m
}

func flat100(x, y float64) float64 { return 100 }

func TestBuildFlatSite(t *testing.T) {
	model := siteModel(t, 500, flat100)
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	assets := []Terminal{
		{ID: "asset-1", Pos: geom.Pt(100, 100)},
		{ID: "asset-2", Pos: geom.Pt(400, 100)},
		{ID: "asset-3", Pos: geom.Pt(250, 400)},
	}

	net, err := Build(context.Background(), model, exclusion.Build(nil), entry, assets, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(net.Segments) != len(assets) {
		t.Fatalf("got %d segments, want %d (spanning tree over %d terminals)",
			len(net.Segments), len(assets), len(assets)+1)
	}
	if !net.GradeCompliant {
		t.Errorf("flat site network not grade compliant, max grade %.2f%%", net.MaxGradePct)
	}
	if net.MaxGradePct > 0.01 {
		t.Errorf("MaxGradePct = %.3f on flat terrain, want ~0", net.MaxGradePct)
	}
	if net.TotalLengthM <= 0 {
		t.Error("TotalLengthM must be positive")
	}
	if net.WidthM != 6 {
		t.Errorf("WidthM = %.1f, want default 6", net.WidthM)
	}
	for _, s := range net.Segments {
		if s.LengthM <= 0 || len(s.Path) < 2 {
			t.Errorf("segment %d has degenerate geometry", s.ID)
		}
		if s.Profile.TotalDistance <= 0 {
			t.Errorf("segment %d missing grade profile", s.ID)
		}
	}
}

func TestBuildAnchorsSegmentEndpoints(t *testing.T) {
	model := siteModel(t, 500, flat100)
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	asset := Terminal{ID: "asset-1", Pos: geom.Pt(450, 250)}

	net, err := Build(context.Background(), model, exclusion.Build(nil), entry, []Terminal{asset}, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(net.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(net.Segments))
	}
	p := net.Segments[0].Path
	if geom.Dist(p[0], entry.Pos) > 1e-9 {
		t.Errorf("segment starts at %v, want entry %v", p[0], entry.Pos)
	}
	if geom.Dist(p[len(p)-1], asset.Pos) > 1e-9 {
		t.Errorf("segment ends at %v, want asset %v", p[len(p)-1], asset.Pos)
	}
}

func TestBuildAvoidsExclusionWall(t *testing.T) {
	model := siteModel(t, 500, flat100)
	// A wall spanning the full site separates entry from asset.
	idx := exclusion.Build([]exclusion.Zone{{
		ID: "wall", Kind: exclusion.KindCustom,
		Geom: geom.RectPolygon(240, 0, 260, 500), Active: true,
	}})
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	asset := Terminal{ID: "asset-1", Pos: geom.Pt(450, 250)}

	_, err := Build(context.Background(), model, idx, entry, []Terminal{asset}, Params{})
	var unreachable *UnreachableAssetError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Build err = %v, want UnreachableAssetError", err)
	}
	if unreachable.AssetID != "asset-1" {
		t.Errorf("AssetID = %q, want asset-1", unreachable.AssetID)
	}
}

func TestBuildGradeLimitBlocksSteepRamp(t *testing.T) {
	// 20% grade everywhere eastward; no 8%-compliant edge moves east.
	model := siteModel(t, 500, func(x, y float64) float64 { return 100 + 0.2*x })
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	asset := Terminal{ID: "asset-1", Pos: geom.Pt(450, 250)}

	_, err := Build(context.Background(), model, exclusion.Build(nil), entry, []Terminal{asset}, Params{})
	var unreachable *UnreachableAssetError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Build err = %v, want UnreachableAssetError", err)
	}
}

func TestBuildGentleRampIsCompliant(t *testing.T) {
	// 5% grade, comfortably under the 8% default.
	model := siteModel(t, 500, func(x, y float64) float64 { return 100 + 0.05*x })
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	asset := Terminal{ID: "asset-1", Pos: geom.Pt(450, 250)}

	net, err := Build(context.Background(), model, exclusion.Build(nil), entry, []Terminal{asset}, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !net.GradeCompliant {
		t.Errorf("network not compliant, max grade %.2f%%", net.MaxGradePct)
	}
	if net.MaxGradePct > 6 {
		t.Errorf("MaxGradePct = %.2f on a 5%% ramp, want about 5", net.MaxGradePct)
	}
	s := net.Segments[0]
	if s.MeanGradePct < 2 || s.MeanGradePct > 6 {
		t.Errorf("MeanGradePct = %.2f, want near 5", s.MeanGradePct)
	}
}

func TestBuildDetoursAroundHill(t *testing.T) {
	// Gaussian hill straddling the direct line; its flanks exceed the grade
	// limit, so the route must swing around it.
	model := siteModel(t, 500, func(x, y float64) float64 {
		d2 := (x-250)*(x-250) + (y-250)*(y-250)
		return 100 + 40*math.Exp(-d2/(2*60*60))
	})
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	asset := Terminal{ID: "asset-1", Pos: geom.Pt(495, 250)}

	net, err := Build(context.Background(), model, exclusion.Build(nil), entry, []Terminal{asset}, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	direct := geom.Dist(entry.Pos, asset.Pos)
	if net.TotalLengthM <= direct+10 {
		t.Errorf("route length %.0fm barely exceeds the %.0fm direct line; expected a detour",
			net.TotalLengthM, direct)
	}
	// The graph search only walks compliant edges; resampling the smoothed
	// geometry may nudge past the limit slightly, not massively.
	if net.MaxGradePct > 12 {
		t.Errorf("MaxGradePct = %.2f, route did not avoid the steep flanks", net.MaxGradePct)
	}
}

func TestBuildNoAssets(t *testing.T) {
	model := siteModel(t, 500, flat100)
	net, err := Build(context.Background(), model, exclusion.Build(nil),
		Terminal{ID: "entry", Pos: geom.Pt(5, 250)}, nil, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(net.Segments) != 0 || net.TotalLengthM != 0 {
		t.Fatal("empty asset list must yield an empty network")
	}
	if !net.GradeCompliant {
		t.Error("empty network is vacuously compliant")
	}
}

func TestBuildDeterministic(t *testing.T) {
	model := siteModel(t, 500, func(x, y float64) float64 {
		return 100 + 0.02*x + 3*math.Sin(y/70)
	})
	entry := Terminal{ID: "entry", Pos: geom.Pt(5, 250)}
	assets := []Terminal{
		{ID: "asset-1", Pos: geom.Pt(120, 80)},
		{ID: "asset-2", Pos: geom.Pt(380, 140)},
		{ID: "asset-3", Pos: geom.Pt(300, 420)},
		{ID: "asset-4", Pos: geom.Pt(90, 390)},
	}

	run := func() *Network {
		net, err := Build(context.Background(), model, exclusion.Build(nil), entry, assets, Params{})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return net
	}
	a, b := run(), run()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated builds differ:\n%s", diff)
	}
}

func TestBuildCancellation(t *testing.T) {
	model := siteModel(t, 500, flat100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, model, exclusion.Build(nil),
		Terminal{ID: "entry", Pos: geom.Pt(5, 250)},
		[]Terminal{{ID: "asset-1", Pos: geom.Pt(450, 250)}}, Params{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
