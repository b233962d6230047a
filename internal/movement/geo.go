package movement

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// point converts a fix to an orb point (X = longitude, Y = latitude).
func (p PositionSample) point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// DistanceMeters is the great-circle distance between two fixes.
func DistanceMeters(a, b PositionSample) float64 {
	return geo.Distance(a.point(), b.point())
}

// planarBearingDeg treats latitude/longitude deltas as planar coordinates:
// atan2(Δlon, Δlat) in degrees. It under-reads angular change at high
// latitude but is what the wandering thresholds were tuned against.
func planarBearingDeg(from, to PositionSample) float64 {
	return math.Atan2(to.Longitude-from.Longitude, to.Latitude-from.Latitude) * 180.0 / math.Pi
}

// geodesicBearingDeg is the initial great-circle bearing from one fix to
// the next, in degrees.
func geodesicBearingDeg(from, to PositionSample) float64 {
	if from.Latitude == to.Latitude && from.Longitude == to.Longitude {
		return 0
	}
	return geo.Bearing(from.point(), to.point())
}

// angleDelta returns the shortest angular difference between two bearings,
// in [0, 180] for bearings within (-360, 360).
func angleDelta(a, b float64) float64 {
	d := math.Abs(b - a)
	if d > 180 {
		d = 360 - d
	}
	return d
}
