package placement

import (
	"github.com/gridpoint-eng/siteplan/internal/geom"
)

// RejectionReason tallies why candidates were discarded.
type RejectionReason string

const (
	RejectOutOfBoundary RejectionReason = "out_of_boundary"
	RejectExcludedZone  RejectionReason = "excluded_zone"
	RejectSlopeExceeded RejectionReason = "slope_exceeded"
	RejectSpacing       RejectionReason = "spacing_violated"
	RejectNoTerrainData RejectionReason = "no_terrain_data"
)

// AssetPlacement is one accepted asset footprint.
type AssetPlacement struct {
	ID         int          `json:"id"`
	Center     geom.Point   `json:"center"`
	BearingDeg float64      `json:"bearing_deg"`
	Footprint  geom.Polygon `json:"footprint"`
	ElevationM float64      `json:"elevation_m"` // mean terrain elevation under footprint
	SlopeDeg   float64      `json:"slope_deg"`   // mean slope under footprint
	Score      float64      `json:"score"`       // objective score, lower is better
}

// Result is the immutable outcome of one optimizer run.
type Result struct {
	Objective Objective        `json:"objective"`
	Spec      AssetSpec        `json:"spec"`
	Placed    []AssetPlacement `json:"placed"`

	Requested      int     `json:"requested"`
	PlacedCount    int     `json:"placed_count"`
	SuccessRatePct float64 `json:"success_rate_pct"`

	Rejections map[RejectionReason]int `json:"rejections"`

	CandidatesTotal    int     `json:"candidates_total"`
	CandidatesFeasible int     `json:"candidates_feasible"`
	LatticeStepM       float64 `json:"lattice_step_m"`

	MeanSlopeDeg      float64 `json:"mean_slope_deg"`
	MeanInterAssetM   float64 `json:"mean_inter_asset_m"`
	MeanElevationM    float64 `json:"mean_elevation_m"`
	ScoringParallel   int     `json:"scoring_parallel"` // workers used
	SelectionPassType string  `json:"selection_pass"`   // "heap" or "rescan"
}

// computeAggregates fills the summary statistics from the accepted set.
func (r *Result) computeAggregates() {
	r.PlacedCount = len(r.Placed)
	if r.Requested > 0 {
		r.SuccessRatePct = float64(r.PlacedCount) / float64(r.Requested) * 100
	}
	if r.PlacedCount == 0 {
		return
	}

	var slopeSum, elevSum float64
	for _, p := range r.Placed {
		slopeSum += p.SlopeDeg
		elevSum += p.ElevationM
	}
	r.MeanSlopeDeg = slopeSum / float64(r.PlacedCount)
	r.MeanElevationM = elevSum / float64(r.PlacedCount)

	if r.PlacedCount > 1 {
		var distSum float64
		pairs := 0
		for i := 0; i < r.PlacedCount; i++ {
			for j := i + 1; j < r.PlacedCount; j++ {
				distSum += geom.Dist(r.Placed[i].Center, r.Placed[j].Center)
				pairs++
			}
		}
		r.MeanInterAssetM = distSum / float64(pairs)
	}
}
