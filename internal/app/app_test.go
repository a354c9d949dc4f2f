package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficpulse/trafficpulse/internal/app"
	"github.com/trafficpulse/trafficpulse/internal/config"
	"github.com/trafficpulse/trafficpulse/internal/events"
)

func fixtureServer(t *testing.T, path string) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	directions := fixtureServer(t, "../routing/googlemaps/testdata/driving_response.json")
	forecast := fixtureServer(t, "../weather/openmeteo/testdata/forecast_response.json")

	t.Setenv(config.FileEnv, "")
	t.Setenv("GOOGLE_MAPS_SERVER_KEY", "test-key")
	t.Setenv("DIRECTIONS_BASE_URL", directions.URL)
	t.Setenv("WEATHER_BASE_URL", forecast.URL)

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryEvents(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{Publish: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Nil(t, a.Pool)
	assert.IsType(t, &events.InMemoryRepository{}, a.EventsRepo)

	health := a.Registry.GetAllHealth()
	require.Len(t, health, 2)
	assert.Equal(t, "google-directions", health[0].Name)
	assert.Equal(t, "open-meteo", health[1].Name)
}

func TestNew_ServicesReachProviders(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	snap, err := a.Traffic.GetIndex(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Routes, len(a.Traffic.Corridors()))
	ok, failed := snap.Counts()
	assert.Equal(t, len(snap.Routes), ok)
	assert.Zero(t, failed)

	report, err := a.Weather.GetReport(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Current.Condition)
}

func TestNew_ConfiguredEventsReplaceDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Items = events.DefaultEvents()[:1]

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	list, err := a.EventsRepo.List(context.Background(), events.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
