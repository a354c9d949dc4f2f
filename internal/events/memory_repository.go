package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It serves the static calendar when no database is configured.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryRepository creates a repository holding events. Events without
// an ID are assigned one.
func NewInMemoryRepository(events []Event) *InMemoryRepository {
	stored := make([]Event, len(events))
	copy(stored, events)
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
	}
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Start.Before(stored[j].Start)
	})
	return &InMemoryRepository{events: stored}
}

// List returns events ordered by start time.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if !opts.EndsAfter.IsZero() && e.End.Before(opts.EndsAfter) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// DefaultEvents is the built-in Istanbul calendar.
func DefaultEvents() []Event {
	istanbul := time.FixedZone("+03", 3*60*60)
	at := func(month time.Month, day, hour, minute int) time.Time {
		return time.Date(2025, month, day, hour, minute, 0, 0, istanbul)
	}

	return []Event{
		{
			ID:       "vodafone-park-2025-09-01",
			Title:    "Vodafone Park Maçı",
			Venue:    "Vodafone Park",
			Location: geo.Point{Lat: 41.0391, Lng: 29.0006},
			Start:    at(time.September, 1, 18, 0),
			End:      at(time.September, 1, 21, 0),
		},
		{
			ID:       "rams-park-2025-09-02",
			Title:    "Rams Park Maçı",
			Venue:    "Rams Park",
			Location: geo.Point{Lat: 41.1032, Lng: 28.9989},
			Start:    at(time.September, 2, 20, 0),
			End:      at(time.September, 2, 23, 0),
		},
		{
			ID:       "tuyap-2025-09-05",
			Title:    "TÜYAP Fuarı",
			Venue:    "TÜYAP",
			Location: geo.Point{Lat: 41.0065, Lng: 28.6414},
			Start:    at(time.September, 5, 10, 0),
			End:      at(time.September, 5, 19, 0),
		},
		{
			ID:       "ulker-arena-2025-09-03",
			Title:    "Ülker Arena Konseri",
			Venue:    "Ülker Sports Arena",
			Location: geo.Point{Lat: 40.9857, Lng: 29.1171},
			Start:    at(time.September, 3, 19, 0),
			End:      at(time.September, 3, 22, 30),
		},
	}
}
