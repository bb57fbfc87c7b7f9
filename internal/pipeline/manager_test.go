package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
	"github.com/gridpoint-eng/siteplan/internal/timeutil"
)

func flatRequest(size, cell float64) Request {
	return Request{
		Boundary: geom.RectPolygon(0, 0, size, size),
		Source: &terrain.FuncSource{
			Extent: geom.RectFrom(geom.Pt(-50, -50), geom.Pt(size+50, size+50)),
			Res:    cell,
			Fn:     func(x, y float64) float64 { return 100 },
		},
		Asset: placement.AssetSpec{
			WidthM: 2.5, LengthM: 12, Count: 3,
			MinSpacingM: 20, MaxSlopeDeg: 5,
		},
		Objective:   placement.ObjectiveBalanced,
		Entry:       geom.Pt(5, size/2),
		AnalyzeOpts: terrain.AnalyzeOptions{CellSize: cell},
	}
}

func TestJobRunsToCompletion(t *testing.T) {
	m := NewManager(0)
	id := m.Submit(flatRequest(200, 10))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	v, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v.Status != StatusCompleted {
		t.Fatalf("Status = %s (error %q), want completed", v.Status, v.Error)
	}
	if v.ProgressPct != 100 {
		t.Errorf("ProgressPct = %.0f, want 100", v.ProgressPct)
	}
	if v.Result == nil || v.Result.Placement == nil || v.Result.Roads == nil || v.Result.Earthwork == nil {
		t.Fatal("completed job must carry all stage results")
	}
	if v.Result.Placement.PlacedCount != 3 {
		t.Errorf("PlacedCount = %d, want 3", v.Result.Placement.PlacedCount)
	}

	wantOrder := []Status{StatusPending, StatusRunning, StatusCompleted}
	if len(v.Transitions) != len(wantOrder) {
		t.Fatalf("got %d transitions, want %d: %+v", len(v.Transitions), len(wantOrder), v.Transitions)
	}
	for i, tr := range v.Transitions {
		if tr.To != wantOrder[i] {
			t.Errorf("transition %d -> %s, want %s", i, tr.To, wantOrder[i])
		}
	}
}

func TestWatchReportsMonotonicProgress(t *testing.T) {
	m := NewManager(0)
	id := m.Submit(flatRequest(200, 10))
	ch, stop, ok := m.Watch(id)
	if !ok {
		t.Fatal("Watch on fresh job failed")
	}
	defer stop()

	last := -1.0
	sawStage := map[Stage]bool{}
	for v := range ch {
		if v.ProgressPct < last {
			t.Fatalf("progress went backwards: %.0f after %.0f", v.ProgressPct, last)
		}
		last = v.ProgressPct
		if v.Stage != "" {
			sawStage[v.Stage] = true
		}
	}
	if last < 95 {
		t.Errorf("final observed progress %.0f, want near 100", last)
	}
	for _, s := range []Stage{StageTerrain, StagePlacement, StageRoads, StageEarthwork} {
		if !sawStage[s] {
			t.Errorf("never observed stage %s", s)
		}
	}
}

func TestFailedJobReportsError(t *testing.T) {
	m := NewManager(0)
	req := flatRequest(200, 10)
	// Degree-like coordinates are rejected by the terrain stage.
	req.Boundary = geom.RectPolygon(-105.1, 39.7, -105.0, 39.8)
	id := m.Submit(req)

	v, err := m.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", v.Status)
	}
	if v.Error == "" {
		t.Error("failed job must carry an error message")
	}
	if v.Result != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestCancelRunningJob(t *testing.T) {
	m := NewManager(0)
	// Large enough that cancellation lands mid-run.
	req := flatRequest(800, 5)
	req.Asset.Count = 20
	id := m.Submit(req)

	if !m.Cancel(id) {
		t.Fatal("Cancel on live job returned false")
	}
	v, err := m.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v.Status != StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", v.Status)
	}
	if m.Cancel(id) {
		t.Error("Cancel on terminal job must return false")
	}
}

func TestJobTimeout(t *testing.T) {
	m := NewManager(time.Millisecond)
	id := m.Submit(flatRequest(800, 5))

	v, err := m.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed on timeout", v.Status)
	}
	if v.Error == "" {
		t.Error("timed-out job must carry an error message")
	}
}

func TestJobTimestampsUseInjectedClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := timeutil.NewMockClock(start)
	m := NewManagerWithClock(0, clk)
	id := m.Submit(flatRequest(200, 10))

	v, err := m.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !v.CreatedAt.Equal(start) {
		t.Errorf("CreatedAt = %v, want %v", v.CreatedAt, start)
	}
	// The clock never advances, so every transition carries the same stamp.
	for i, tr := range v.Transitions {
		if !tr.At.Equal(start) {
			t.Errorf("transition %d At = %v, want %v", i, tr.At, start)
		}
	}
	if !v.StartedAt.Equal(start) || !v.FinishedAt.Equal(start) {
		t.Errorf("StartedAt/FinishedAt = %v/%v, want %v", v.StartedAt, v.FinishedAt, start)
	}
}

func TestUnknownJob(t *testing.T) {
	m := NewManager(0)
	if _, ok := m.Get("nope"); ok {
		t.Error("Get on unknown id must fail")
	}
	if m.Cancel("nope") {
		t.Error("Cancel on unknown id must fail")
	}
	if _, _, ok := m.Watch("nope"); ok {
		t.Error("Watch on unknown id must fail")
	}
}

func TestListPreservesSubmissionOrder(t *testing.T) {
	m := NewManager(0)
	a := m.Submit(flatRequest(200, 10))
	b := m.Submit(flatRequest(200, 10))

	jobs := m.List()
	if len(jobs) != 2 || jobs[0].ID != a || jobs[1].ID != b {
		t.Fatalf("List order wrong: %v", []string{jobs[0].ID, jobs[1].ID})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
