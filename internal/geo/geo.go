// Package geo provides the geometric primitives used by midpoint resolution,
// clustering and scoring: great-circle distance and linear interpolation.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
	EarthRadiusMeters = 6371000

	// MetersPerMile converts statute miles to meters.
	MetersPerMile = 1609.344
)

// Coordinate is an immutable geographic point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate lies within valid ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lng)
	}
	return nil
}

// String formats the coordinate as "lat,lng" with 6 decimal places.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Distance returns the great-circle distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// Interpolate returns the point at fraction along the straight segment a->b.
// Latitude and longitude are interpolated independently; fraction is clamped to [0, 1].
func Interpolate(a, b Coordinate, fraction float64) Coordinate {
	f := Clamp01(fraction)
	return Coordinate{
		Lat: a.Lat + f*(b.Lat-a.Lat),
		Lng: a.Lng + f*(b.Lng-a.Lng),
	}
}

// Mean returns the arithmetic mean of the coordinates.
// This is not a geodesic centroid; it is accurate enough at neighborhood scale.
func Mean(coords []Coordinate) Coordinate {
	if len(coords) == 0 {
		return Coordinate{}
	}

	var lat, lng float64
	for _, c := range coords {
		lat += c.Lat
		lng += c.Lng
	}
	n := float64(len(coords))
	return Coordinate{Lat: lat / n, Lng: lng / n}
}

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 {
	return m / MetersPerMile
}

// MilesToMeters converts statute miles to meters.
func MilesToMeters(mi float64) float64 {
	return mi * MetersPerMile
}

// Clamp01 limits v to the closed interval [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
