// Package routing fetches single origin to destination legs from a
// directions provider and normalizes their timing data.
package routing

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the directions provider is down, refused the key or returned a non-200 status.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates the provider returned no routes.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidRequest indicates the provider rejected the request parameters.
	ErrInvalidRequest = errors.New("invalid routing request")
	// ErrMissingData indicates a leg lacks the duration fields needed for a ratio.
	ErrMissingData = errors.New("duration fields missing")
)

// Client fetches a single leg for one travel mode.
type Client interface {
	// FetchLeg issues exactly one provider call.
	FetchLeg(ctx context.Context, req LegRequest) (*Leg, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Mode is a travel mode understood by the directions provider.
// Unknown values are passed through unchanged.
type Mode string

const (
	ModeDriving   Mode = "driving"
	ModeTransit   Mode = "transit"
	ModeWalking   Mode = "walking"
	ModeBicycling Mode = "bicycling"
)

// UsesDeparture reports whether the provider accepts a departure time for the mode.
func (m Mode) UsesDeparture() bool {
	return m == ModeDriving || m == ModeTransit
}

// Departure is the requested departure time. The zero value means "now".
type Departure struct {
	At time.Time
}

// Now is the departure used by the traffic index.
var Now = Departure{}

// DepartAt returns a departure at t.
func DepartAt(t time.Time) Departure {
	return Departure{At: t}
}

// IsNow reports whether the departure is "now".
func (d Departure) IsNow() bool {
	return d.At.IsZero()
}

// String renders the departure the way the provider expects it: "now" or a
// unix timestamp in seconds.
func (d Departure) String() string {
	if d.IsNow() {
		return "now"
	}
	return strconv.FormatInt(d.At.Unix(), 10)
}

// LegRequest describes one directions query.
type LegRequest struct {
	// Origin and Destination are opaque waypoint strings, usually "lat,lng".
	Origin      string
	Destination string
	Mode        Mode
	Departure   Departure
}

// Leg is the normalized first leg of the first route returned by the provider.
type Leg struct {
	// TypicalSeconds is the duration without live traffic. Zero when absent.
	TypicalSeconds int
	// InTrafficSeconds is the traffic-aware duration. It equals TypicalSeconds
	// when the provider did not report one.
	InTrafficSeconds int
	// TrafficReported is true when the provider sent a traffic-aware duration.
	TrafficReported bool
	// DistanceMeters is zero when absent.
	DistanceMeters int
	// Polyline is the encoded overview polyline, empty when absent.
	Polyline string
	// HasToll is set when any step instruction mentions a toll.
	HasToll bool
}

// CurrentSeconds returns the duration that applies right now for the mode:
// traffic-aware for driving, typical otherwise.
func (l *Leg) CurrentSeconds(mode Mode) int {
	if mode == ModeDriving {
		return l.InTrafficSeconds
	}
	return l.TypicalSeconds
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUpstream returns true if the error originated from the provider rather than the leg data.
func (e *Error) IsUpstream() bool {
	return !errors.Is(e.Err, ErrMissingData)
}
