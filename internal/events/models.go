// Package events lists venue events whose traffic impact is active or upcoming.
package events

import (
	"errors"
	"math"
	"time"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// ErrInvalidEvent is returned for an event with a missing title or inverted time range.
var ErrInvalidEvent = errors.New("invalid event")

const (
	// LeadTime is how long before its start an event starts affecting traffic.
	LeadTime = 2 * time.Hour
	// TrailTime is how long after its end an event keeps affecting traffic.
	TrailTime = time.Hour
	// DefaultRadiusKm applies when a proximity origin is given without a radius.
	DefaultRadiusKm = 10.0
)

// isoMillis is the UTC millisecond layout used for startISO/endISO.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Event is a scheduled event at a venue.
type Event struct {
	ID       string    `mapstructure:"id"`
	Title    string    `mapstructure:"title"`
	Venue    string    `mapstructure:"venue"`
	Location geo.Point `mapstructure:",squash"`
	Start    time.Time `mapstructure:"start"`
	End      time.Time `mapstructure:"end"`
}

// Validate checks the event fields.
func (e Event) Validate() error {
	if e.Title == "" {
		return errors.Join(ErrInvalidEvent, errors.New("title is required"))
	}
	if e.End.Before(e.Start) {
		return errors.Join(ErrInvalidEvent, errors.New("end is before start"))
	}
	return e.Location.Validate()
}

// ImpactWindow returns the period during which the event is considered active.
func (e Event) ImpactWindow() (from, to time.Time) {
	return e.Start.Add(-LeadTime), e.End.Add(TrailTime)
}

// ActiveAt reports whether now falls inside the impact window, bounds included.
func (e Event) ActiveAt(now time.Time) bool {
	from, to := e.ImpactWindow()
	return !now.Before(from) && !now.After(to)
}

// Item is the API representation of an event.
type Item struct {
	Title      string    `json:"title"`
	Venue      string    `json:"venue"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartISO   string    `json:"startISO"`
	EndISO     string    `json:"endISO"`
	DistanceKm *float64  `json:"distanceKm,omitempty"`
}

func toItem(e Event) Item {
	return Item{
		Title:    e.Title,
		Venue:    e.Venue,
		Lat:      e.Location.Lat,
		Lng:      e.Location.Lng,
		Start:    e.Start,
		End:      e.End,
		StartISO: e.Start.UTC().Format(isoMillis),
		EndISO:   e.End.UTC().Format(isoMillis),
	}
}

// Query selects events relative to a point in time and optionally a location.
type Query struct {
	// Now is the reference time. Zero uses the service clock.
	Now time.Time
	// Near restricts results to events within RadiusKm of the point.
	Near *geo.Point
	// RadiusKm defaults to DefaultRadiusKm when Near is set.
	RadiusKm float64
}

// Response groups events by their relation to Now.
type Response struct {
	Active      []Item    `json:"active"`
	Upcoming    []Item    `json:"upcoming"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
