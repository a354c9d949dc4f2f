package traffic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/trafficpulse/trafficpulse/internal/cache"
	"github.com/trafficpulse/trafficpulse/internal/routing"
)

const (
	cacheKey      = "index"
	metricsSource = "traffic-index"
)

// ServiceConfig holds configuration for the traffic index service.
type ServiceConfig struct {
	// Client fetches corridor legs.
	Client routing.Client

	// Corridors to sample. Defaults to DefaultCorridors.
	Corridors []Corridor

	// Logger for service operations.
	Logger zerolog.Logger

	// TTL is how long a snapshot is served from cache (default: 30 seconds).
	TTL time.Duration

	// Policy selects how concurrent cache misses are handled (default: coalesced).
	Policy RefreshPolicy

	// MaxConcurrency bounds in-flight corridor queries (default: all corridors).
	MaxConcurrency int

	// RequireTrafficData treats a leg without a traffic-aware duration as missing data.
	RequireTrafficData bool

	// Publisher is notified of every new snapshot (optional).
	Publisher SnapshotPublisher

	// PublishTimeout bounds each background publish (default: 5 seconds).
	PublishTimeout time.Duration

	// Metrics records cache hits and misses (optional).
	Metrics CacheRecorder

	// Clock overrides time.Now.
	Clock cache.Clock
}

// Service computes and caches the congestion index.
type Service struct {
	client             routing.Client
	corridors          []Corridor
	logger             zerolog.Logger
	policy             RefreshPolicy
	maxConcurrency     int
	requireTrafficData bool
	publisher          SnapshotPublisher
	publishTimeout     time.Duration
	publishing         sync.WaitGroup
	metrics            CacheRecorder
	now                cache.Clock

	cache *cache.TTL[string, *Snapshot]
	group singleflight.Group
}

// NewService creates a new traffic index service.
func NewService(cfg ServiceConfig) *Service {
	corridors := cfg.Corridors
	if len(corridors) == 0 {
		corridors = DefaultCorridors()
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}

	policy := cfg.Policy
	if policy == "" {
		policy = RefreshCoalesced
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout == 0 {
		publishTimeout = 5 * time.Second
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		client:             cfg.Client,
		corridors:          corridors,
		logger:             cfg.Logger,
		policy:             policy,
		maxConcurrency:     cfg.MaxConcurrency,
		requireTrafficData: cfg.RequireTrafficData,
		publisher:          cfg.Publisher,
		publishTimeout:     publishTimeout,
		metrics:            cfg.Metrics,
		now:                now,
		cache:              cache.NewTTL[string, *Snapshot](cache.Config{TTL: ttl, Clock: now}),
	}
}

// Corridors returns the sampled corridors.
func (s *Service) Corridors() []Corridor {
	out := make([]Corridor, len(s.corridors))
	copy(out, s.corridors)
	return out
}

// Policy returns the configured refresh policy.
func (s *Service) Policy() RefreshPolicy {
	return s.policy
}

// GetIndex returns the cached snapshot when fresh, otherwise computes a new one.
// Returns ErrNoData when every corridor failed; nothing is cached in that case.
func (s *Service) GetIndex(ctx context.Context) (*Snapshot, error) {
	if snap, ok := s.cache.Get(cacheKey); ok {
		s.recordHit()
		s.logger.Debug().Time("updated_at", snap.UpdatedAt).Msg("cache hit for traffic index")
		return snap, nil
	}
	s.recordMiss()

	if s.policy == RefreshIndependent {
		return s.refresh(ctx)
	}

	// The shared computation outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, coalesced := s.group.Do(cacheKey, func() (any, error) {
		if snap, ok := s.cache.Get(cacheKey); ok {
			return snap, nil
		}
		return s.refresh(shared)
	})
	if err != nil {
		return nil, err
	}
	if coalesced {
		s.logger.Debug().Msg("joined in-flight traffic index computation")
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate() {
	s.cache.Delete(cacheKey)
}

// WaitPublished blocks until background publishes have finished.
func (s *Service) WaitPublished() {
	s.publishing.Wait()
}

// refresh queries every corridor, builds a snapshot and caches it.
// A snapshot computed under a cancelled context is returned but not cached.
func (s *Service) refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	results := make([]CorridorResult, len(s.corridors))

	errs := routing.Settle(ctx, len(s.corridors), s.maxConcurrency, func(ctx context.Context, i int) error {
		c := s.corridors[i]
		pct, err := s.increasePct(ctx, c)
		if err != nil {
			s.logger.Warn().Err(err).Str("corridor", c.Name).Msg("corridor excluded from index")
			results[i] = CorridorResult{Name: c.Name, Error: errorMessage(err)}
			return err
		}
		results[i] = CorridorResult{Name: c.Name, IncreasePct: &pct}
		return nil
	})

	// Tasks skipped after cancellation never wrote their slot.
	for i, err := range errs {
		if err != nil && results[i].Name == "" {
			results[i] = CorridorResult{Name: s.corridors[i].Name, Error: errorMessage(err)}
		}
	}

	snap, err := BuildSnapshot(results, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Int("corridors", len(s.corridors)).Msg("traffic index computation failed")
		return nil, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Warn().Err(ctxErr).Msg("traffic index computed under a cancelled context, not cached")
		return snap, nil
	}

	s.cache.Set(cacheKey, snap)

	ok, failed := snap.Counts()
	s.logger.Info().
		Int("index", snap.Index).
		Int("avg_increase_pct", snap.AvgIncreasePct).
		Int("ok_routes", ok).
		Int("failed_routes", failed).
		Dur("duration", time.Since(start)).
		Msg("traffic index computed")

	if s.publisher != nil {
		s.publish(context.WithoutCancel(ctx), snap)
	}

	return snap, nil
}

// publish sends snap in the background under its own timeout.
func (s *Service) publish(ctx context.Context, snap *Snapshot) {
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish traffic index snapshot")
		}
	}()
}

// increasePct fetches one driving leg for c and returns its congestion percentage.
func (s *Service) increasePct(ctx context.Context, c Corridor) (float64, error) {
	leg, err := s.client.FetchLeg(ctx, routing.LegRequest{
		Origin:      c.From.String(),
		Destination: c.To.String(),
		Mode:        routing.ModeDriving,
		Departure:   routing.Now,
	})
	if err != nil {
		return 0, err
	}

	if leg.TypicalSeconds <= 0 || leg.InTrafficSeconds <= 0 {
		return 0, routing.ErrMissingData
	}
	if s.requireTrafficData && !leg.TrafficReported {
		return 0, fmt.Errorf("%w: no traffic-aware duration", routing.ErrMissingData)
	}

	return IncreasePct(leg.TypicalSeconds, leg.InTrafficSeconds), nil
}

func (s *Service) recordHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(metricsSource, cacheKey)
	}
}

func (s *Service) recordMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(metricsSource, cacheKey)
	}
}

// errorMessage prefers the provider's own message over the wrapped chain.
func errorMessage(err error) string {
	var rErr *routing.Error
	if errors.As(err, &rErr) && rErr.Message != "" {
		return rErr.Message
	}
	return err.Error()
}
