package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficpulse/trafficpulse/internal/events"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

var istanbul = time.FixedZone("+03", 3*60*60)

func newService() *events.Service {
	return events.NewService(events.ServiceConfig{
		Repository: events.NewInMemoryRepository(events.DefaultEvents()),
		Logger:     zerolog.Nop(),
	})
}

func titles(items []events.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestService_Upcoming_BeforeEverything(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, istanbul)

	resp, err := newService().Upcoming(context.Background(), events.Query{Now: now})
	require.NoError(t, err)

	assert.Empty(t, resp.Active)
	assert.Equal(t, []string{
		"Vodafone Park Maçı",
		"Rams Park Maçı",
		"Ülker Arena Konseri",
		"TÜYAP Fuarı",
	}, titles(resp.Upcoming), "upcoming is ordered by start")
	assert.Equal(t, now.UTC(), resp.GeneratedAt)
}

func TestService_Upcoming_ActiveWindowBoundaries(t *testing.T) {
	start := time.Date(2025, 9, 1, 18, 0, 0, 0, istanbul)
	end := time.Date(2025, 9, 1, 21, 0, 0, 0, istanbul)

	tests := []struct {
		name       string
		now        time.Time
		wantActive bool
	}{
		{"just before lead window", start.Add(-2*time.Hour - time.Second), false},
		{"lead window opens", start.Add(-2 * time.Hour), true},
		{"during event", start.Add(time.Hour), true},
		{"trail window closes", end.Add(time.Hour), true},
		{"after trail window", end.Add(time.Hour + time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newService().Upcoming(context.Background(), events.Query{Now: tt.now})
			require.NoError(t, err)

			if tt.wantActive {
				assert.Contains(t, titles(resp.Active), "Vodafone Park Maçı")
				assert.NotContains(t, titles(resp.Upcoming), "Vodafone Park Maçı")
			} else {
				assert.NotContains(t, titles(resp.Active), "Vodafone Park Maçı")
			}
		})
	}
}

func TestService_Upcoming_PastEventsDropped(t *testing.T) {
	now := time.Date(2025, 9, 4, 12, 0, 0, 0, istanbul)

	resp, err := newService().Upcoming(context.Background(), events.Query{Now: now})
	require.NoError(t, err)

	assert.Empty(t, resp.Active)
	assert.Equal(t, []string{"TÜYAP Fuarı"}, titles(resp.Upcoming))
}

func TestService_Upcoming_Near(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, istanbul)
	besiktas := geo.Point{Lat: 41.0423, Lng: 29.0050}

	resp, err := newService().Upcoming(context.Background(), events.Query{
		Now:      now,
		Near:     &besiktas,
		RadiusKm: 8,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"Vodafone Park Maçı", "Rams Park Maçı"}, titles(resp.Upcoming))
	for _, it := range resp.Upcoming {
		require.NotNil(t, it.DistanceKm)
		assert.LessOrEqual(t, *it.DistanceKm, 8.0)
	}
	assert.Less(t, *resp.Upcoming[0].DistanceKm, 1.0)
}

func TestService_Upcoming_NearDefaultRadius(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, istanbul)
	beylikduzu := geo.Point{Lat: 41.0018, Lng: 28.6401}

	resp, err := newService().Upcoming(context.Background(), events.Query{Now: now, Near: &beylikduzu})
	require.NoError(t, err)
	assert.Equal(t, []string{"TÜYAP Fuarı"}, titles(resp.Upcoming))
}

func TestService_Upcoming_InvalidNear(t *testing.T) {
	bad := geo.Point{Lat: 120, Lng: 0}
	_, err := newService().Upcoming(context.Background(), events.Query{Near: &bad})
	assert.ErrorIs(t, err, geo.ErrInvalidPoint)
}

type failingRepo struct{}

func (failingRepo) List(context.Context, events.ListOptions) ([]events.Event, error) {
	return nil, errors.New("connection refused")
}

func TestService_Upcoming_RepositoryError(t *testing.T) {
	service := events.NewService(events.ServiceConfig{Repository: failingRepo{}, Logger: zerolog.Nop()})
	_, err := service.Upcoming(context.Background(), events.Query{})
	assert.ErrorContains(t, err, "connection refused")
}

func TestItem_JSON(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, istanbul)

	resp, err := newService().Upcoming(context.Background(), events.Query{Now: now})
	require.NoError(t, err)

	body, err := json.Marshal(resp.Upcoming[0])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "2025-09-01T18:00:00+03:00", got["start"])
	assert.Equal(t, "2025-09-01T15:00:00.000Z", got["startISO"])
	assert.Equal(t, "2025-09-01T18:00:00.000Z", got["endISO"])
	assert.Equal(t, "Vodafone Park", got["venue"])
	assert.NotContains(t, got, "distanceKm")
}

func TestEvent_Validate(t *testing.T) {
	e := events.DefaultEvents()[0]
	assert.NoError(t, e.Validate())

	e.Title = ""
	assert.ErrorIs(t, e.Validate(), events.ErrInvalidEvent)

	e = events.DefaultEvents()[0]
	e.End = e.Start.Add(-time.Minute)
	assert.ErrorIs(t, e.Validate(), events.ErrInvalidEvent)
}

func TestInMemoryRepository_AssignsIDs(t *testing.T) {
	repo := events.NewInMemoryRepository([]events.Event{{Title: "x", Start: time.Now(), End: time.Now()}})
	list, err := repo.List(context.Background(), events.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].ID)
}
