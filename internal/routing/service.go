package routing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives timing for every provider call.
type Recorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Client is the directions provider.
	Client Client

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider call durations (optional).
	Metrics Recorder
}

// Service validates leg requests, then forwards them to the provider with
// logging and metrics. It implements Client.
type Service struct {
	client  Client
	logger  zerolog.Logger
	metrics Recorder
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		client:  cfg.Client,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.client.Name()
}

// FetchLeg issues one provider call for req.
func (s *Service) FetchLeg(ctx context.Context, req LegRequest) (*Leg, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	leg, err := s.client.FetchLeg(ctx, req)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordRequest(s.client.Name(), "directions."+string(req.Mode), elapsed, err)
	}

	if err != nil {
		s.logger.Error().Err(err).
			Str("origin", req.Origin).
			Str("destination", req.Destination).
			Str("mode", string(req.Mode)).
			Dur("duration", elapsed).
			Msg("failed to fetch leg")
		return nil, err
	}

	if req.Mode == ModeDriving && !leg.TrafficReported {
		s.logger.Warn().
			Str("origin", req.Origin).
			Str("destination", req.Destination).
			Msg("provider returned no traffic-aware duration, using typical duration")
	}

	s.logger.Debug().
		Str("mode", string(req.Mode)).
		Int("typical_s", leg.TypicalSeconds).
		Int("in_traffic_s", leg.InTrafficSeconds).
		Dur("duration", elapsed).
		Msg("fetched leg")

	return leg, nil
}

func (s *Service) validate(req LegRequest) error {
	switch {
	case strings.TrimSpace(req.Origin) == "":
		return &Error{Provider: s.client.Name(), Code: "INVALID_ORIGIN", Message: "origin is required", Err: ErrInvalidRequest}
	case strings.TrimSpace(req.Destination) == "":
		return &Error{Provider: s.client.Name(), Code: "INVALID_DESTINATION", Message: "destination is required", Err: ErrInvalidRequest}
	case req.Mode == "":
		return &Error{Provider: s.client.Name(), Code: "INVALID_MODE", Message: "mode is required", Err: ErrInvalidRequest}
	}
	return nil
}
