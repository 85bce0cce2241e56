// Package geo converts grid offsets into coordinates and generates the tile
// sweep used by the collector.
package geo

import (
	"math"

	"github.com/sells-group/places-cli/internal/model"
)

const (
	// MetersPerDegree is the equirectangular length of one degree of latitude.
	MetersPerDegree = 111320.0
	// EarthRadiusKM is the mean Earth radius used for great-circle distances.
	EarthRadiusKM = 6371.0
)

// OffsetToCoordinate moves base by dx blocks east and dy blocks north, each
// block being stepMeters long. It uses an equirectangular approximation that
// is accurate for city-scale offsets and undefined near the poles.
func OffsetToCoordinate(base model.LatLng, dx, dy int, stepMeters float64) model.LatLng {
	var dLat, dLng float64
	if dy != 0 {
		dLat = float64(dy) * stepMeters / MetersPerDegree
	}
	if dx != 0 {
		dLng = float64(dx) * stepMeters / (MetersPerDegree * math.Cos(radians(base.Lat)))
	}
	return model.LatLng{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b model.LatLng) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Asin(math.Sqrt(h))
	return EarthRadiusKM * c * 1000
}

// BearingDegrees returns the initial bearing from a to b, clockwise from
// north in [0, 360).
func BearingDegrees(a, b model.LatLng) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLng := radians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
