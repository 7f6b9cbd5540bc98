// README: Great-circle distance and coordinate validity on top of s2.
package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"taxifare/internal/types"
)

// EarthRadiusMeters is the mean radius used for all distance figures.
const EarthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between a and b rounded to
// the nearest metre.
func HaversineMeters(a, b types.Point) int {
	angle := latLng(a).Distance(latLng(b))
	return int(math.Round(angle.Radians() * EarthRadiusMeters))
}

// ValidPoint reports whether p is finite with lat in [-90,90] and lng in [-180,180].
func ValidPoint(p types.Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func latLng(p types.Point) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}
