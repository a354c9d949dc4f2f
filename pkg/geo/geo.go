// Package geo provides geographic point primitives shared by the routing,
// traffic and events packages.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPoint is returned when a point is malformed or out of range.
var ErrInvalidPoint = errors.New("invalid geographic point")

const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" mapstructure:"lng"`
}

// Validate checks that the point lies within lat [-90, 90] and lng [-180, 180].
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidPoint, p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidPoint, p.Lng)
	}
	return nil
}

// String renders the point as "lat,lng", the waypoint format accepted by
// directions providers.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// Parse parses a "lat,lng" string.
func Parse(s string) (Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("%w: expected \"lat,lng\", got %q", ErrInvalidPoint, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidPoint, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidPoint, lngStr)
	}

	p := Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DistanceKm is DistanceMeters expressed in kilometers.
func DistanceKm(a, b Point) float64 {
	return DistanceMeters(a, b) / 1000
}
