// Package pipeline orchestrates the site planning stages as asynchronous
// jobs with observable status and progress.
package pipeline

import (
	"time"

	"github.com/gridpoint-eng/siteplan/internal/earthwork"
	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Stage names one pipeline step.
type Stage string

const (
	StageTerrain   Stage = "terrain_analysis"
	StageExclusion Stage = "exclusion_zones"
	StagePlacement Stage = "asset_placement"
	StageRoads     Stage = "road_network"
	StageEarthwork Stage = "earthwork"
)

// Transition is one entry of a job's append-only status history.
type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// Request carries everything one planning run needs.
type Request struct {
	Boundary  geom.Polygon
	Source    terrain.ElevationSource
	Zones     []exclusion.Zone
	Asset     placement.AssetSpec
	Objective placement.Objective
	Entry     geom.Point

	AnalyzeOpts   terrain.AnalyzeOptions
	PlacementOpts placement.Options
	Road          roadnet.Params
	Earthwork     earthwork.Params
}

// Result collects the stage outputs of a completed run.
type Result struct {
	Terrain   *terrain.Model      `json:"-"`
	Zones     *exclusion.Index    `json:"-"`
	Placement *placement.Result   `json:"placement"`
	Roads     *roadnet.Network    `json:"roads"`
	Earthwork *earthwork.Estimate `json:"earthwork"`
}

// JobView is an immutable snapshot of a job, safe to hand out.
type JobView struct {
	ID          string       `json:"id"`
	Status      Status       `json:"status"`
	Stage       Stage        `json:"stage,omitempty"`
	ProgressPct float64      `json:"progress_pct"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	FinishedAt  time.Time    `json:"finished_at,omitzero"`
	Transitions []Transition `json:"transitions"`
	Result      *Result      `json:"result,omitempty"`
}
