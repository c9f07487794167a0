package spatial

import "math"

// EarthRadiusMeters is Earth's mean radius.
const EarthRadiusMeters = 6371000.0

// Projector maps WGS-84 coordinates onto a local planar frame using an
// equirectangular approximation around a fixed reference latitude. All
// corridors share one projector so that distances measured against
// different corridors stay comparable. The approximation degrades far from
// the reference latitude, which is acceptable for corridor-scale geometry
// where only relative distances matter.
type Projector struct {
	refLatCos float64
}

// NewProjector creates a projector anchored at the given reference latitude
// in degrees.
func NewProjector(referenceLatitude float64) *Projector {
	return &Projector{refLatCos: math.Cos(referenceLatitude * math.Pi / 180)}
}

// Project converts a longitude/latitude pair (degrees) to planar x/y meters.
func (p *Projector) Project(longitude, latitude float64) (x, y float64) {
	x = longitude * math.Pi / 180 * EarthRadiusMeters * p.refLatCos
	y = latitude * math.Pi / 180 * EarthRadiusMeters
	return x, y
}
