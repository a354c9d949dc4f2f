package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// ServiceConfig holds configuration for the events service.
type ServiceConfig struct {
	// Repository is the event source.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Service classifies events as active or upcoming.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new events service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    now,
	}
}

// Upcoming returns events whose impact window contains q.Now as active and
// events starting after q.Now as upcoming, both ordered by start time.
func (s *Service) Upcoming(ctx context.Context, q Query) (*Response, error) {
	now := q.Now
	if now.IsZero() {
		now = s.now()
	}

	radius := q.RadiusKm
	if q.Near != nil {
		if err := q.Near.Validate(); err != nil {
			return nil, err
		}
		if radius <= 0 {
			radius = DefaultRadiusKm
		}
	}

	list, err := s.repo.List(ctx, ListOptions{EndsAfter: now.Add(-TrailTime)})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list events")
		return nil, fmt.Errorf("listing events: %w", err)
	}

	resp := &Response{
		Active:      []Item{},
		Upcoming:    []Item{},
		GeneratedAt: now.UTC(),
	}

	for _, e := range list {
		item := toItem(e)
		if q.Near != nil {
			d := geo.DistanceKm(*q.Near, e.Location)
			if d > radius {
				continue
			}
			km := roundKm(d)
			item.DistanceKm = &km
		}

		switch {
		case e.ActiveAt(now):
			resp.Active = append(resp.Active, item)
		case e.Start.After(now):
			resp.Upcoming = append(resp.Upcoming, item)
		}
	}

	s.logger.Debug().
		Int("active", len(resp.Active)).
		Int("upcoming", len(resp.Upcoming)).
		Msg("classified events")

	return resp, nil
}
