// Package placement searches a candidate lattice for feasible, high-scoring
// asset footprints and selects a non-overlapping subset greedily.
package placement

import "fmt"

// Objective selects the scoring strategy for candidate footprints.
type Objective string

const (
	// ObjectiveMinimizeCutFill favours footprints over the least elevation
	// spread (least grading).
	ObjectiveMinimizeCutFill Objective = "minimize_cut_fill"
	// ObjectiveMaximizeFlatAreas favours the lowest mean slope.
	ObjectiveMaximizeFlatAreas Objective = "maximize_flat_areas"
	// ObjectiveMinimizeInterAssetDistance favours proximity to the centroid
	// of already-accepted assets.
	ObjectiveMinimizeInterAssetDistance Objective = "minimize_inter_asset_distance"
	// ObjectiveBalanced combines the three signals with equal weights.
	ObjectiveBalanced Objective = "balanced"
)

// Valid reports whether o is a known objective.
func (o Objective) Valid() bool {
	switch o {
	case ObjectiveMinimizeCutFill, ObjectiveMaximizeFlatAreas,
		ObjectiveMinimizeInterAssetDistance, ObjectiveBalanced:
		return true
	}
	return false
}

// OrientationMode selects how candidate bearings are generated.
type OrientationMode string

const (
	// OrientationFixed places every asset at FixedBearingDeg.
	OrientationFixed OrientationMode = "fixed"
	// OrientationFree tries each bearing in freeBearings per position.
	OrientationFree OrientationMode = "free"
)

// Bearings tried per lattice position under OrientationFree.
var freeBearings = []float64{0, 90}

// AssetSpec describes the asset to place and its constraints.
type AssetSpec struct {
	WidthM          float64         `json:"width_m"`
	LengthM         float64         `json:"length_m"`
	Count           int             `json:"count"`
	MinSpacingM     float64         `json:"min_spacing_m"` // centre-to-centre
	MaxSlopeDeg     float64         `json:"max_slope_deg"`
	Orientation     OrientationMode `json:"orientation"`
	FixedBearingDeg float64         `json:"fixed_bearing_deg"`
}

// Validate rejects nonsensical specs before the search starts.
func (s AssetSpec) Validate() error {
	if s.WidthM <= 0 || s.LengthM <= 0 {
		return fmt.Errorf("asset footprint %gx%g must be positive", s.WidthM, s.LengthM)
	}
	if s.Count <= 0 {
		return fmt.Errorf("asset count %d must be positive", s.Count)
	}
	if s.MinSpacingM < 0 {
		return fmt.Errorf("min spacing %g must be non-negative", s.MinSpacingM)
	}
	if s.MaxSlopeDeg <= 0 {
		return fmt.Errorf("max slope %g deg must be positive", s.MaxSlopeDeg)
	}
	return nil
}

// bearings returns the candidate bearings for this spec.
func (s AssetSpec) bearings() []float64 {
	if s.Orientation == OrientationFree {
		return freeBearings
	}
	return []float64{s.FixedBearingDeg}
}

// InfeasibleConstraintError is returned when the constraints rule out every
// candidate position before scoring even begins, e.g. a footprint larger
// than any unexcluded area.
type InfeasibleConstraintError struct {
	Reason      string
	WidthM      float64
	LengthM     float64
	BoundaryM2  float64
	LatticeStep float64
}

func (e *InfeasibleConstraintError) Error() string {
	return fmt.Sprintf("placement infeasible: %s (footprint %gx%gm, boundary %.0f m2, lattice %.1fm)",
		e.Reason, e.WidthM, e.LengthM, e.BoundaryM2, e.LatticeStep)
}
