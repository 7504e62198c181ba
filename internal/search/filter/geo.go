package filter

import (
	"math"

	"github.com/seniorliving/directory-search/internal/directory"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distance.
const EarthRadiusMiles = 3958.8

// Haversine returns the great-circle distance in miles between two points.
func Haversine(a, b directory.LatLng) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
