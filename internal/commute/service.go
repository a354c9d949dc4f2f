package commute

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/routing"
)

// ServiceConfig holds configuration for the commute service.
type ServiceConfig struct {
	// Client fetches one leg per mode.
	Client routing.Client

	// Logger for service operations.
	Logger zerolog.Logger

	// MaxModes caps the number of modes per request (default: 6).
	MaxModes int

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Service compares travel modes.
type Service struct {
	client   routing.Client
	logger   zerolog.Logger
	maxModes int
	now      func() time.Time
}

// NewService creates a new commute service.
func NewService(cfg ServiceConfig) *Service {
	maxModes := cfg.MaxModes
	if maxModes == 0 {
		maxModes = 6
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		client:   cfg.Client,
		logger:   cfg.Logger,
		maxModes: maxModes,
		now:      now,
	}
}

// Compare fetches each requested mode in order and ranks them by current
// travel time. The first failing mode aborts the whole comparison.
func (s *Service) Compare(ctx context.Context, req Request) (*Response, error) {
	from := strings.TrimSpace(req.From)
	to := strings.TrimSpace(req.To)
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: from and to are required, e.g. 41.0,29.0", ErrBadRequest)
	}

	modes, err := ParseModes(req.Modes, s.maxModes)
	if err != nil {
		return nil, err
	}

	departure := routing.Now
	if req.DepartAt != nil {
		departure = routing.DepartAt(*req.DepartAt)
	}

	results := make([]RouteModeResult, len(modes))
	err = routing.Sequential(ctx, len(modes), func(ctx context.Context, i int) error {
		leg, err := s.client.FetchLeg(ctx, routing.LegRequest{
			Origin:      from,
			Destination: to,
			Mode:        modes[i],
			Departure:   departure,
		})
		if err != nil {
			return fmt.Errorf("mode %s: %w", modes[i], err)
		}
		results[i] = modeResult(modes[i], leg)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("from", from).
			Str("to", to).
			Msg("commute comparison failed")
		return nil, err
	}

	resp := &Response{
		Routes:      results,
		GeneratedAt: s.now().UTC(),
	}
	if i := rank(results); i >= 0 {
		mode := results[i].Mode
		resp.FastestMode = &mode
	}

	s.logger.Debug().
		Int("modes", len(modes)).
		Interface("fastest_mode", resp.FastestMode).
		Msg("commute comparison completed")

	return resp, nil
}

func modeResult(mode routing.Mode, leg *routing.Leg) RouteModeResult {
	r := RouteModeResult{
		Mode:           string(mode),
		NowMinutes:     minutes(leg.CurrentSeconds(mode)),
		TypicalMinutes: minutes(leg.TypicalSeconds),
	}

	if leg.DistanceMeters > 0 {
		km := float64(leg.DistanceMeters) / 1000
		r.DistanceKm = &km
	}
	if leg.Polyline != "" {
		p := leg.Polyline
		r.Polyline = &p
	}
	if leg.HasToll {
		w := TollWarning
		r.Warning = &w
	}

	return r
}

// rank fills the per-mode deltas and returns the index of the fastest mode,
// or -1 when no mode has a current duration. Ties keep the first mode.
func rank(results []RouteModeResult) int {
	fastest := -1
	for i, r := range results {
		if r.NowMinutes == nil {
			continue
		}
		if fastest < 0 || *r.NowMinutes < *results[fastest].NowMinutes {
			fastest = i
		}
	}

	for i := range results {
		r := &results[i]
		if fastest >= 0 && r.NowMinutes != nil {
			diff := *r.NowMinutes - *results[fastest].NowMinutes
			r.DiffToFastestMinutes = &diff
		}
		if r.NowMinutes != nil && r.TypicalMinutes != nil && *r.TypicalMinutes != 0 {
			delta := roundInt((float64(*r.NowMinutes)/float64(*r.TypicalMinutes) - 1) * 100)
			r.DeltaPctVsTypical = &delta
		}
	}

	return fastest
}

// minutes converts seconds to whole minutes. Zero seconds means the provider sent nothing.
func minutes(seconds int) *int {
	if seconds <= 0 {
		return nil
	}
	m := roundInt(float64(seconds) / 60)
	return &m
}

// roundInt rounds half toward positive infinity.
func roundInt(x float64) int {
	return int(math.Floor(x + 0.5))
}
