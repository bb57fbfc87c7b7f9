// Command siteplan runs one site layout planning job: terrain analysis,
// exclusion zones, asset placement, road routing and earthwork estimation.
// Results are persisted to the run database and written to the artifact
// directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gridpoint-eng/siteplan/internal/config"
	"github.com/gridpoint-eng/siteplan/internal/pipeline"
	"github.com/gridpoint-eng/siteplan/internal/render"
	"github.com/gridpoint-eng/siteplan/internal/report"
	"github.com/gridpoint-eng/siteplan/internal/runstore"
	"github.com/gridpoint-eng/siteplan/internal/units"
	"github.com/gridpoint-eng/siteplan/internal/version"
)

var (
	scenarioPath = flag.String("scenario", "", "Scenario JSON file (empty runs the built-in demo)")
	outDir       = flag.String("out", "out", "Artifact output directory")
	dbFile       = flag.String("db", "siteplan.db", "Run history database path")
	objective    = flag.String("objective", "", "Override the scenario's placement objective")
	tuningPath   = flag.String("tuning", "", "Planner tuning overrides JSON file")
	unitSystem   = flag.String("units", units.Metric, "Display units for the summary (metric, imperial)")
	timeout      = flag.Duration("timeout", 10*time.Minute, "Job timeout")
	noRender     = flag.Bool("no-render", false, "Skip PNG and chart artifacts")
	listRuns     = flag.Bool("runs", false, "Print recent run history and exit")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if !units.IsValid(*unitSystem) {
		log.Fatalf("invalid -units %q, valid values: %s", *unitSystem, units.GetValidSystemsString())
	}

	store, err := runstore.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open run database: %v", err)
	}
	defer store.Close()

	if *listRuns {
		printRuns(store)
		return
	}

	sc := demoScenario()
	if *scenarioPath != "" {
		sc, err = loadScenario(*scenarioPath)
		if err != nil {
			log.Fatalf("failed to load scenario: %v", err)
		}
	}
	if *objective != "" {
		sc.Objective = *objective
	}
	req, err := sc.request()
	if err != nil {
		log.Fatalf("invalid scenario: %v", err)
	}
	if *tuningPath != "" {
		cfg, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		applyTuning(cfg, &req)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := pipeline.NewManager(*timeout)
	id := mgr.Submit(req)
	log.Printf("scenario %q submitted as run %s", sc.Name, id)

	// Cancel the job when a shutdown signal arrives.
	go func() {
		<-ctx.Done()
		mgr.Cancel(id)
	}()

	ch, stopWatch, ok := mgr.Watch(id)
	if !ok {
		log.Fatalf("job %s vanished", id)
	}
	defer stopWatch()
	for v := range ch {
		log.Printf("run %s: %s %s %.0f%%", id, v.Status, v.Stage, v.ProgressPct)
		if err := store.SaveRun(runstore.FromJob(v)); err != nil {
			log.Printf("failed to persist run state: %v", err)
		}
	}

	final, ok := mgr.Get(id)
	if !ok {
		log.Fatalf("job %s vanished", id)
	}
	if err := store.SaveRun(runstore.FromJob(final)); err != nil {
		log.Printf("failed to persist final run state: %v", err)
	}

	switch final.Status {
	case pipeline.StatusCompleted:
		summarize(final)
		if err := writeArtifacts(*outDir, req, final); err != nil {
			log.Fatalf("failed to write artifacts: %v", err)
		}
	case pipeline.StatusCancelled:
		log.Fatalf("run %s cancelled", id)
	default:
		log.Fatalf("run %s %s: %s", id, final.Status, final.Error)
	}
}

// applyTuning overrides request knobs with values set in the tuning file.
// Unset fields leave the per-stage defaults in place.
func applyTuning(cfg *config.TuningConfig, req *pipeline.Request) {
	if cfg.LatticeStepM != nil {
		req.PlacementOpts.LatticeStepM = cfg.GetLatticeStepM()
	}
	if cfg.Workers != nil {
		req.PlacementOpts.Workers = cfg.GetWorkers()
	}
	if cfg.GradePenalty != nil {
		req.Road.GradePenalty = cfg.GetGradePenalty()
	}
	if cfg.SimplifyTolM != nil {
		req.Road.SimplifyTolM = cfg.GetSimplifyTolM()
	}
	if cfg.HillshadeAzimuthDeg != nil {
		req.AnalyzeOpts.HillshadeAzimuthDeg = cfg.GetHillshadeAzimuthDeg()
	}
	if cfg.HillshadeAltitudeDeg != nil {
		req.AnalyzeOpts.HillshadeAltitudeDeg = cfg.GetHillshadeAltitudeDeg()
	}
}

func summarize(v pipeline.JobView) {
	us := *unitSystem
	lu, vu := units.LengthUnit(us), units.VolumeUnit(us)
	r := v.Result
	log.Printf("placed %d/%d assets (%.0f%%), mean slope %.2f deg",
		r.Placement.PlacedCount, r.Placement.Requested,
		r.Placement.SuccessRatePct, r.Placement.MeanSlopeDeg)
	log.Printf("roads: %d segments, %.0f %s, max grade %.1f%% (compliant=%v)",
		len(r.Roads.Segments), units.ConvertLength(r.Roads.TotalLengthM, us), lu,
		r.Roads.MaxGradePct, r.Roads.GradeCompliant)
	log.Printf("earthwork: cut %.0f %s, fill %.0f %s, net %.0f %s",
		units.ConvertVolume(r.Earthwork.TotalCutM3, us), vu,
		units.ConvertVolume(r.Earthwork.TotalFillM3, us), vu,
		units.ConvertVolume(r.Earthwork.NetM3, us), vu)
}

func writeArtifacts(dir string, req pipeline.Request, v pipeline.JobView) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v.Result, "", "  ")
	if err != nil {
		return err
	}
	resultPath := filepath.Join(dir, "result.json")
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s", resultPath)

	if *noRender {
		return nil
	}

	r := v.Result
	planPath := filepath.Join(dir, "site_plan.png")
	if err := render.SitePlan(planPath, r.Terrain, req.Zones, r.Placement, r.Roads, req.Entry, render.Options{}); err != nil {
		return err
	}
	log.Printf("wrote %s", planPath)

	bandsPath := filepath.Join(dir, "slope_bands.png")
	if err := report.SlopeBands(bandsPath, r.Terrain); err != nil {
		return err
	}
	log.Printf("wrote %s", bandsPath)

	if len(r.Roads.Segments) > 0 {
		gradesPath := filepath.Join(dir, "grade_profiles.png")
		if err := report.GradeProfiles(gradesPath, r.Roads); err != nil {
			return err
		}
		log.Printf("wrote %s", gradesPath)
	}
	return nil
}

func printRuns(store *runstore.DB) {
	runs, err := store.ListRuns(20)
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		log.Print("no runs recorded")
		return
	}
	for _, r := range runs {
		line := r.RunID + " " + r.Status
		if r.Summary != nil {
			line += " " + summaryLine(r.Summary)
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		log.Print(line)
	}
}

func summaryLine(s *runstore.Summary) string {
	b, _ := json.Marshal(s)
	return string(b)
}
