package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/trafficpulse/trafficpulse/internal/cache"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache weather data (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// Clock overrides time.Now.
	Clock cache.Clock
}

// Service provides weather data with caching.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	cacheGridSize float64

	cache *cache.TTL[string, *Report]
	group singleflight.Group
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		cacheGridSize: cacheGridSize,
		cache: cache.NewTTL[string, *Report](cache.Config{
			TTL:       cacheTTL,
			Retention: staleIfErrorTTL,
			Clock:     cfg.Clock,
		}),
	}
}

// GetReport returns the weather at p, or at DefaultLocation when p is nil.
func (s *Service) GetReport(ctx context.Context, p *geo.Point) (*Report, error) {
	loc := DefaultLocation
	if p != nil {
		loc = *p
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}

	key := s.cacheKey(loc)
	if report, ok := s.cache.Get(key); ok {
		return report, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if report, ok := s.cache.Get(key); ok {
			return report, nil
		}
		return s.fetch(context.WithoutCancel(ctx), loc, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

// fetch calls the provider and falls back to stale data on error.
func (s *Service) fetch(ctx context.Context, loc geo.Point, key string) (*Report, error) {
	s.logger.Debug().
		Float64("lat", loc.Lat).
		Float64("lng", loc.Lng).
		Str("provider", s.provider.Name()).
		Msg("fetching weather from provider")

	report, err := s.provider.GetReport(ctx, loc)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", loc.Lat).
			Float64("lng", loc.Lng).
			Msg("failed to fetch weather")

		if stale, ok := s.cache.Peek(key); ok {
			s.logger.Warn().
				Time("fetched_at", stale.FetchedAt).
				Msg("serving stale weather data due to provider error")
			return stale.Value, nil
		}

		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.cache.Set(key, report)
	return report, nil
}

// cacheKey groups nearby points into grid cells.
func (s *Service) cacheKey(p geo.Point) string {
	gridLat := math.Floor(p.Lat/s.cacheGridSize) * s.cacheGridSize
	gridLng := math.Floor(p.Lng/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLng)
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.cache.Clear()
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	stats := s.cache.Stats()
	return CacheStats{
		Entries:      stats.Entries,
		FreshEntries: stats.Fresh,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
