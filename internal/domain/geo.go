package domain

import "math"

const earthRadiusKm = 6371.0

// Location is a point on the map with an optional human readable address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// Valid reports whether the coordinates are within range.
func (l Location) Valid() bool {
	return IsValidLatitude(l.Lat) && IsValidLongitude(l.Lng)
}

// IsValidLatitude reports whether lat is within [-90, 90].
func IsValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// IsValidLongitude reports whether lng is within [-180, 180].
func IsValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b Location) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
