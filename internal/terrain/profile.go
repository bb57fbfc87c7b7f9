package terrain

import (
	"github.com/gridpoint-eng/siteplan/internal/geom"
)

// ProfilePoint is one sample along a terrain profile.
type ProfilePoint struct {
	Pos       geom.Point `json:"pos"`
	Distance  float64    `json:"distance"`  // cumulative metres from the start
	Elevation float64    `json:"elevation"` // NoData where unsampled
}

// Profile holds sampled elevations along a path.
type Profile struct {
	Points        []ProfilePoint `json:"points"`
	TotalDistance float64        `json:"total_distance"`
	ElevationGain float64        `json:"elevation_gain"`
	ElevationLoss float64        `json:"elevation_loss"`
}

// LineProfile samples n evenly spaced elevations between a and b.
func (m *Model) LineProfile(a, b geom.Point, n int) Profile {
	return m.PathProfile(geom.Polyline{a, b}, n)
}

// PathProfile samples n evenly spaced elevations along the polyline.
func (m *Model) PathProfile(path geom.Polyline, n int) Profile {
	if n < 2 {
		n = 2
	}
	total := path.Length()
	p := Profile{Points: make([]ProfilePoint, n), TotalDistance: total}

	for i := 0; i < n; i++ {
		d := total * float64(i) / float64(n-1)
		pos := path.PointAt(d)
		p.Points[i] = ProfilePoint{
			Pos:       pos,
			Distance:  d,
			Elevation: m.Elevation.At(pos),
		}
	}

	prev := NoData
	for _, pt := range p.Points {
		if Valid(pt.Elevation) && Valid(prev) {
			if diff := pt.Elevation - prev; diff > 0 {
				p.ElevationGain += diff
			} else {
				p.ElevationLoss -= diff
			}
		}
		if Valid(pt.Elevation) {
			prev = pt.Elevation
		}
	}
	return p
}
