package weather_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// mockProvider is a mock weather provider for testing.
type mockProvider struct {
	mu        sync.Mutex
	callCount int
	points    []geo.Point
	err       error
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) GetReport(_ context.Context, p geo.Point) (*weather.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.points = append(m.points, p)

	if m.err != nil {
		return nil, m.err
	}

	temp := 24.3
	code := 61
	return &weather.Report{
		Current: weather.Current{
			Temperature:   &temp,
			Precipitation: 0.4,
			WeatherCode:   &code,
			Condition:     weather.ConditionFromWMO(&code),
		},
		Next3h: weather.Hourly{
			Time:          []string{"2025-09-01T08:00", "2025-09-01T09:00", "2025-09-01T10:00"},
			Precipitation: []float64{0.4, 0.2, 0},
			Probability:   []float64{80, 55, 20},
			Rain:          []float64{0.4, 0.2, 0},
		},
		UpdatedAt: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockProvider) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(provider weather.Provider, clock *fakeClock) *weather.Service {
	return weather.NewService(weather.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
		Clock:    clock.Now,
	})
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func TestService_GetReport_DefaultLocation(t *testing.T) {
	provider := &mockProvider{}
	service := newTestService(provider, newClock())

	report, err := service.GetReport(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, report.Current.Temperature)
	assert.Equal(t, 24.3, *report.Current.Temperature)
	assert.Equal(t, weather.ConditionRain, report.Current.Condition)

	require.Len(t, provider.points, 1)
	assert.Equal(t, weather.DefaultLocation, provider.points[0])
}

func TestService_GetReport_CachesByGridCell(t *testing.T) {
	provider := &mockProvider{}
	service := newTestService(provider, newClock())
	ctx := context.Background()

	_, err := service.GetReport(ctx, &geo.Point{Lat: 41.012, Lng: 28.971})
	require.NoError(t, err)
	_, err = service.GetReport(ctx, &geo.Point{Lat: 41.048, Lng: 28.999})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls(), "points in the same cell share the cache")

	_, err = service.GetReport(ctx, &geo.Point{Lat: 41.2, Lng: 28.97})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())

	stats := service.CacheStats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, "mock", stats.Provider)
}

func TestService_GetReport_Expires(t *testing.T) {
	provider := &mockProvider{}
	clock := newClock()
	service := newTestService(provider, clock)
	ctx := context.Background()

	_, err := service.GetReport(ctx, nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = service.GetReport(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
}

func TestService_GetReport_StaleIfError(t *testing.T) {
	provider := &mockProvider{}
	clock := newClock()
	service := newTestService(provider, clock)
	ctx := context.Background()

	first, err := service.GetReport(ctx, nil)
	require.NoError(t, err)

	provider.setErr(errors.New("connection reset"))
	clock.Advance(30 * time.Minute)

	stale, err := service.GetReport(ctx, nil)
	require.NoError(t, err, "stale data is served within the stale window")
	assert.Same(t, first, stale)

	clock.Advance(time.Hour)
	_, err = service.GetReport(ctx, nil)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestService_GetReport_ProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("boom")}
	service := newTestService(provider, newClock())

	_, err := service.GetReport(context.Background(), nil)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
	assert.ErrorContains(t, err, "boom")
}

func TestService_GetReport_InvalidCoordinates(t *testing.T) {
	provider := &mockProvider{}
	service := newTestService(provider, newClock())

	for _, p := range []geo.Point{{Lat: 91, Lng: 0}, {Lat: 0, Lng: -181}} {
		_, err := service.GetReport(context.Background(), &p)
		assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
	}
	assert.Equal(t, 0, provider.calls())
}

func TestService_InvalidateCache(t *testing.T) {
	provider := &mockProvider{}
	service := newTestService(provider, newClock())

	_, err := service.GetReport(context.Background(), nil)
	require.NoError(t, err)
	service.InvalidateCache()
	_, err = service.GetReport(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls())
	assert.Equal(t, "mock", service.ProviderName())
}

func TestConditionFromWMO(t *testing.T) {
	code := func(c int) *int { return &c }

	tests := []struct {
		code *int
		want weather.Condition
	}{
		{nil, weather.ConditionUnknown},
		{code(0), weather.ConditionClear},
		{code(2), weather.ConditionClouds},
		{code(45), weather.ConditionFog},
		{code(53), weather.ConditionDrizzle},
		{code(63), weather.ConditionRain},
		{code(81), weather.ConditionRain},
		{code(73), weather.ConditionSnow},
		{code(95), weather.ConditionThunderstorm},
		{code(42), weather.ConditionUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, weather.ConditionFromWMO(tt.code))
	}

	assert.True(t, weather.ConditionRain.IsWet())
	assert.False(t, weather.ConditionFog.IsWet())
}
