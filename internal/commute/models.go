// Package commute compares travel modes for a single origin/destination pair.
package commute

import (
	"errors"
	"time"
)

// ErrBadRequest indicates the comparison request is malformed.
var ErrBadRequest = errors.New("bad request")

// TollWarning is attached to modes whose route mentions a toll.
const TollWarning = "Route may include toll roads"

// Request is a comparison request.
type Request struct {
	// From and To are "lat,lng" strings or any waypoint the provider accepts.
	From string
	To   string

	// Modes is a comma-separated list. Empty selects DefaultModes.
	Modes string

	// DepartAt is the departure time. Nil means now.
	DepartAt *time.Time
}

// RouteModeResult is the comparison row for one travel mode.
// Nil pointers are serialized as null.
type RouteModeResult struct {
	Mode                 string   `json:"mode"`
	NowMinutes           *int     `json:"nowMinutes"`
	TypicalMinutes       *int     `json:"typicalMinutes"`
	DistanceKm           *float64 `json:"distanceKm"`
	Polyline             *string  `json:"polyline"`
	Warning              *string  `json:"warning"`
	DiffToFastestMinutes *int     `json:"diffToFastestMinutes"`
	DeltaPctVsTypical    *int     `json:"deltaPctVsTypical"`
}

// Response is the result of a comparison.
type Response struct {
	Routes      []RouteModeResult `json:"routes"`
	FastestMode *string           `json:"fastestMode"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
