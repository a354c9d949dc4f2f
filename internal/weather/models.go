// Package weather serves short-range weather for a location, cached on a
// coarse grid so nearby requests share one upstream call.
package weather

import (
	"context"
	"errors"
	"time"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// DefaultLocation is used when a request names no location (Istanbul).
var DefaultLocation = geo.Point{Lat: 41.01, Lng: 28.97}

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetReport fetches current conditions and the next hours of precipitation.
	GetReport(ctx context.Context, p geo.Point) (*Report, error)

	// Name returns the provider name for logging.
	Name() string
}

// Report is the weather for one location.
type Report struct {
	Current   Current   `json:"current"`
	Next3h    Hourly    `json:"next3h"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Current holds current conditions. Missing upstream values are null,
// except precipitation which defaults to zero.
type Current struct {
	Temperature   *float64  `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	WeatherCode   *int      `json:"weatherCode"`
	WindSpeed     *float64  `json:"windSpeed"`
	Condition     Condition `json:"condition"`
}

// Hourly is a short precipitation outlook. Slices are index-aligned with Time
// and never nil.
type Hourly struct {
	Time          []string  `json:"time"`
	Precipitation []float64 `json:"precipitation"`
	Probability   []float64 `json:"probability"`
	Rain          []float64 `json:"rain"`
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionFog          Condition = "FOG"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionRain         Condition = "RAIN"
	ConditionSnow         Condition = "SNOW"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionUnknown      Condition = "UNKNOWN"
)

// ConditionFromWMO maps a WMO weather interpretation code to a Condition.
func ConditionFromWMO(code *int) Condition {
	if code == nil {
		return ConditionUnknown
	}
	switch c := *code; {
	case c == 0:
		return ConditionClear
	case c >= 1 && c <= 3:
		return ConditionClouds
	case c == 45 || c == 48:
		return ConditionFog
	case c >= 51 && c <= 57:
		return ConditionDrizzle
	case (c >= 61 && c <= 67) || (c >= 80 && c <= 82):
		return ConditionRain
	case (c >= 71 && c <= 77) || c == 85 || c == 86:
		return ConditionSnow
	case c >= 95 && c <= 99:
		return ConditionThunderstorm
	default:
		return ConditionUnknown
	}
}

// IsWet reports whether the condition usually slows road traffic.
func (c Condition) IsWet() bool {
	switch c {
	case ConditionDrizzle, ConditionRain, ConditionSnow, ConditionThunderstorm:
		return true
	}
	return false
}
