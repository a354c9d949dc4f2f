package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/traffic"
	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// Job names used in RefreshError.
const (
	JobIndex   = "index"
	JobWeather = "weather"
)

// IndexRefresher recomputes the traffic index. *traffic.Service satisfies it.
type IndexRefresher interface {
	Invalidate()
	GetIndex(ctx context.Context) (*traffic.Snapshot, error)
}

// WeatherWarmer fetches weather reports. *weather.Service satisfies it.
type WeatherWarmer interface {
	GetReport(ctx context.Context, p *geo.Point) (*weather.Report, error)
}

// RefreshJob keeps the index and weather caches warm.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	index   IndexRefresher
	weather WeatherWarmer

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes   int64
	IndexRefreshes   int64
	IndexFailures    int64
	WeatherRefreshes int64
	WeatherFailures  int64

	// Last computed index value, -1 until the first success.
	LastIndex int

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Index   IndexRefresher
	Weather WeatherWarmer
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultRefreshTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		index:   cfg.Index,
		weather: cfg.Weather,
		metrics: &RefreshMetrics{LastIndex: -1},
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Snapshot is the recomputed index, nil when the index was skipped or failed.
	Snapshot *traffic.Snapshot

	TotalTargets int
	Successful   int
	Failed       int
	Errors       []RefreshError
}

// RefreshError reports one failed refresh.
type RefreshError struct {
	Job    string
	Target string
	Error  string
}

// Err folds the per-target errors into one error, or nil.
func (r *RefreshResult) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, fmt.Errorf("%s %s: %s", e.Job, e.Target, e.Error))
	}
	return errors.Join(errs...)
}

// Run recomputes the index and then warms the weather cache for all targets.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	if j.config.RefreshWeather && j.weather != nil {
		result.TotalTargets = len(j.config.Targets)
	}

	j.logger.Info().
		Bool("index", j.config.RefreshIndex && j.index != nil).
		Int("weather_targets", result.TotalTargets).
		Int("concurrency", j.config.Concurrency).
		Msg("starting refresh job")

	if j.config.RefreshIndex && j.index != nil {
		snap, err := j.refreshIndex(ctx)
		if err != nil {
			result.Errors = append(result.Errors, RefreshError{Job: JobIndex, Target: "city", Error: err.Error()})
		} else {
			result.Snapshot = snap
		}
	}

	if result.TotalTargets > 0 {
		j.warmWeather(ctx, result)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if len(result.Errors) > 0 {
		event = j.logger.Warn()
	}
	if result.Snapshot != nil {
		event = event.Int("index", result.Snapshot.Index)
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("errors", len(result.Errors)).
		Msg("refresh job completed")

	return result
}

func (j *RefreshJob) refreshIndex(ctx context.Context) (*traffic.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.index.Invalidate()
	snap, err := j.index.GetIndex(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to refresh traffic index")
		return nil, err
	}
	return snap, nil
}

type targetResult struct {
	target RefreshTarget
	err    error
}

func (j *RefreshJob) warmWeather(ctx context.Context, result *RefreshResult) {
	targets := j.config.OrderedTargets()

	targetsChan := make(chan RefreshTarget, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.weatherWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{
			Job:    JobWeather,
			Target: tr.target.Name,
			Error:  tr.err.Error(),
		})
	}
}

func (j *RefreshJob) weatherWorker(ctx context.Context, targets <-chan RefreshTarget, results chan<- targetResult) {
	for t := range targets {
		if err := ctx.Err(); err != nil {
			results <- targetResult{target: t, err: err}
			continue
		}
		results <- targetResult{target: t, err: j.refreshWeather(ctx, t)}
	}
}

func (j *RefreshJob) refreshWeather(ctx context.Context, t RefreshTarget) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	p := t.Point
	if _, err := j.weather.GetReport(ctx, &p); err != nil {
		j.logger.Warn().Err(err).Str("target", t.Name).Msg("failed to warm weather")
		return err
	}
	return nil
}

// HealthCheck verifies provider connectivity without invalidating the index:
// a cached snapshot counts as healthy. Weather is checked at the first target.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var errs []error
	if j.index != nil {
		if _, err := j.index.GetIndex(ctx); err != nil {
			errs = append(errs, fmt.Errorf("traffic index: %w", err))
		}
	}
	if j.weather != nil && len(j.config.Targets) > 0 {
		p := j.config.OrderedTargets()[0].Point
		if _, err := j.weather.GetReport(ctx, &p); err != nil {
			errs = append(errs, fmt.Errorf("weather: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	if j.config.RefreshIndex && j.index != nil {
		if result.Snapshot != nil {
			j.metrics.IndexRefreshes++
			j.metrics.LastIndex = result.Snapshot.Index
		} else {
			j.metrics.IndexFailures++
		}
	}
	j.metrics.WeatherRefreshes += int64(result.Successful)
	j.metrics.WeatherFailures += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		IndexRefreshes:      j.metrics.IndexRefreshes,
		IndexFailures:       j.metrics.IndexFailures,
		WeatherRefreshes:    j.metrics.WeatherRefreshes,
		WeatherFailures:     j.metrics.WeatherFailures,
		LastIndex:           j.metrics.LastIndex,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"index_refreshes":       m.IndexRefreshes,
		"index_failures":        m.IndexFailures,
		"weather_refreshes":     m.WeatherRefreshes,
		"weather_failures":      m.WeatherFailures,
		"last_index":            m.LastIndex,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
