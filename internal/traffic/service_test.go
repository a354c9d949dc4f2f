package traffic_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficpulse/trafficpulse/internal/routing"
	"github.com/trafficpulse/trafficpulse/internal/traffic"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// mockClient returns a fixed outcome per origin.
type mockClient struct {
	mu      sync.Mutex
	legs    map[string]*routing.Leg
	errs    map[string]error
	calls   map[string]int
	total   atomic.Int32
	release chan struct{}
}

func newMockClient() *mockClient {
	return &mockClient{
		legs:  make(map[string]*routing.Leg),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (m *mockClient) FetchLeg(ctx context.Context, req routing.LegRequest) (*routing.Leg, error) {
	m.total.Add(1)
	m.mu.Lock()
	m.calls[req.Origin]++
	leg, err := m.legs[req.Origin], m.errs[req.Origin]
	release := m.release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if leg == nil {
		return nil, errors.New("unexpected origin " + req.Origin)
	}
	return leg, nil
}

func (m *mockClient) Name() string { return "mock" }

func (m *mockClient) callsFor(origin string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[origin]
}

func (m *mockClient) set(c traffic.Corridor, normal, inTraffic int) {
	m.legs[c.From.String()] = &routing.Leg{
		TypicalSeconds:   normal,
		InTrafficSeconds: inTraffic,
		TrafficReported:  true,
	}
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

type capturePublisher struct {
	mu        sync.Mutex
	snapshots []*traffic.Snapshot
}

func (p *capturePublisher) PublishSnapshot(_ context.Context, snap *traffic.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snap)
	return nil
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	started  chan struct{}
	release  chan struct{}
	deadline atomic.Bool
}

func (p *blockingPublisher) PublishSnapshot(ctx context.Context, _ *traffic.Snapshot) error {
	_, ok := ctx.Deadline()
	p.deadline.Store(ok)
	close(p.started)
	<-p.release
	return nil
}

var (
	corridorA = traffic.Corridor{Name: "A", From: geo.Point{Lat: 41.0, Lng: 29.0}, To: geo.Point{Lat: 41.1, Lng: 29.1}}
	corridorB = traffic.Corridor{Name: "B", From: geo.Point{Lat: 40.9, Lng: 28.9}, To: geo.Point{Lat: 41.0, Lng: 29.0}}
	corridorC = traffic.Corridor{Name: "C", From: geo.Point{Lat: 41.2, Lng: 28.7}, To: geo.Point{Lat: 41.0, Lng: 28.9}}
)

func newService(client routing.Client, clock *fakeClock, corridors ...traffic.Corridor) *traffic.Service {
	return traffic.NewService(traffic.ServiceConfig{
		Client:    client,
		Corridors: corridors,
		Logger:    zerolog.Nop(),
		Clock:     clock.Now,
	})
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func TestService_GetIndex_EndToEnd(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	client.set(corridorB, 800, 800)
	clock := newClock()

	snap, err := newService(client, clock, corridorA, corridorB).GetIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 26, snap.Index)
	assert.Equal(t, 25, snap.AvgIncreasePct)
	require.Len(t, snap.Routes, 2)
	assert.Equal(t, "A", snap.Routes[0].Name)
	assert.InDelta(t, 50.0, *snap.Routes[0].IncreasePct, 1e-9)
	assert.Equal(t, "B", snap.Routes[1].Name)
	assert.InDelta(t, 0.0, *snap.Routes[1].IncreasePct, 1e-9)
	assert.Equal(t, clock.Now(), snap.UpdatedAt)
}

func TestService_GetIndex_PartialFailure(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1200)
	client.errs[corridorB.From.String()] = &routing.Error{
		Provider: "mock",
		Code:     "REQUEST_DENIED",
		Message:  "The provided API key is invalid.",
		Err:      routing.ErrProviderUnavailable,
	}
	client.set(corridorC, 1000, 1000)

	snap, err := newService(client, newClock(), corridorA, corridorB, corridorC).GetIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, snap.AvgIncreasePct, "average over successful corridors only")
	assert.Equal(t, 11, snap.Index)

	require.Len(t, snap.Routes, 3)
	failed := snap.Routes[1]
	assert.Equal(t, "B", failed.Name)
	assert.False(t, failed.OK())
	assert.Equal(t, "The provided API key is invalid.", failed.Error)

	ok, bad := snap.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, bad)
}

func TestService_GetIndex_AllFailedIsNotCached(t *testing.T) {
	client := newMockClient()
	client.errs[corridorA.From.String()] = routing.ErrNoRouteFound
	client.errs[corridorB.From.String()] = routing.ErrNoRouteFound

	service := newService(client, newClock(), corridorA, corridorB)

	_, err := service.GetIndex(context.Background())
	assert.ErrorIs(t, err, traffic.ErrNoData)

	_, err = service.GetIndex(context.Background())
	assert.ErrorIs(t, err, traffic.ErrNoData)

	assert.Equal(t, 2, client.callsFor(corridorA.From.String()), "failure must not be cached")
}

func TestService_GetIndex_MissingDurations(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 0, 0)
	client.set(corridorB, 1000, 1100)

	snap, err := newService(client, newClock(), corridorA, corridorB).GetIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "duration fields missing", snap.Routes[0].Error)
	assert.Equal(t, 10, snap.AvgIncreasePct)
}

func TestService_GetIndex_RequireTrafficData(t *testing.T) {
	client := newMockClient()
	client.legs[corridorA.From.String()] = &routing.Leg{TypicalSeconds: 900, InTrafficSeconds: 900}
	client.set(corridorB, 1000, 1300)

	lenient := newService(client, newClock(), corridorA, corridorB)
	snap, err := lenient.GetIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Routes[0].OK(), "missing traffic data defaults to no congestion")
	assert.Equal(t, 15, snap.AvgIncreasePct)

	strict := traffic.NewService(traffic.ServiceConfig{
		Client:             client,
		Corridors:          []traffic.Corridor{corridorA, corridorB},
		Logger:             zerolog.Nop(),
		RequireTrafficData: true,
	})
	snap, err = strict.GetIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Routes[0].OK())
	assert.Contains(t, snap.Routes[0].Error, "duration fields missing")
	assert.Equal(t, 30, snap.AvgIncreasePct)
}

func TestService_GetIndex_Clamp(t *testing.T) {
	tests := []struct {
		name      string
		normal    int
		inTraffic int
		want      int
	}{
		{"heavy congestion clamps to 99", 600, 1800, 99},
		{"faster than typical clamps to 1", 1000, 500, 1},
		{"no congestion", 1000, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockClient()
			client.set(corridorA, tt.normal, tt.inTraffic)

			snap, err := newService(client, newClock(), corridorA).GetIndex(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Index)
			assert.GreaterOrEqual(t, snap.Index, 1)
			assert.LessOrEqual(t, snap.Index, 99)
		})
	}
}

func TestService_GetIndex_TTL(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	clock := newClock()
	service := newService(client, clock, corridorA)

	first, err := service.GetIndex(context.Background())
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	second, err := service.GetIndex(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second, "fresh snapshot is returned unchanged")
	assert.Equal(t, 1, client.callsFor(corridorA.From.String()))

	clock.Advance(time.Second)
	third, err := service.GetIndex(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, client.callsFor(corridorA.From.String()))
}

func TestService_Invalidate(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	service := newService(client, newClock(), corridorA)

	_, err := service.GetIndex(context.Background())
	require.NoError(t, err)

	service.Invalidate()

	_, err = service.GetIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.callsFor(corridorA.From.String()))
}

func TestService_GetIndex_CoalescedRefresh(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	client.set(corridorB, 800, 800)
	client.release = make(chan struct{})

	service := newService(client, newClock(), corridorA, corridorB)
	assert.Equal(t, traffic.RefreshCoalesced, service.Policy())

	const callers = 8
	var wg sync.WaitGroup
	snaps := make([]*traffic.Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := service.GetIndex(context.Background())
			assert.NoError(t, err)
			snaps[i] = snap
		}(i)
	}

	require.Eventually(t, func() bool { return client.total.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(client.release)
	wg.Wait()

	assert.Equal(t, 1, client.callsFor(corridorA.From.String()))
	assert.Equal(t, 1, client.callsFor(corridorB.From.String()))
	for _, snap := range snaps {
		assert.Same(t, snaps[0], snap)
	}
}

func TestService_GetIndex_IndependentRefresh(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	client.release = make(chan struct{})

	service := traffic.NewService(traffic.ServiceConfig{
		Client:    client,
		Corridors: []traffic.Corridor{corridorA},
		Logger:    zerolog.Nop(),
		Policy:    traffic.RefreshIndependent,
	})

	const callers = 4
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.GetIndex(context.Background())
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return client.total.Load() == callers }, time.Second, 5*time.Millisecond)
	close(client.release)
	wg.Wait()

	assert.Equal(t, callers, client.callsFor(corridorA.From.String()))
}

func TestService_GetIndex_Publishes(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	publisher := &capturePublisher{}

	service := traffic.NewService(traffic.ServiceConfig{
		Client:    client,
		Corridors: []traffic.Corridor{corridorA},
		Logger:    zerolog.Nop(),
		Publisher: publisher,
	})

	snap, err := service.GetIndex(context.Background())
	require.NoError(t, err)
	_, err = service.GetIndex(context.Background())
	require.NoError(t, err)
	service.WaitPublished()

	require.Len(t, publisher.snapshots, 1, "cache hits are not republished")
	assert.Same(t, snap, publisher.snapshots[0])
}

func TestService_GetIndex_SlowPublisherDoesNotBlock(t *testing.T) {
	client := newMockClient()
	client.set(corridorA, 1000, 1500)
	publisher := &blockingPublisher{started: make(chan struct{}), release: make(chan struct{})}

	service := traffic.NewService(traffic.ServiceConfig{
		Client:    client,
		Corridors: []traffic.Corridor{corridorA},
		Logger:    zerolog.Nop(),
		Publisher: publisher,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	snap, err := service.GetIndex(ctx)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 50, snap.AvgIncreasePct)
	assert.Less(t, elapsed, 100*time.Millisecond)

	select {
	case <-publisher.started:
	case <-time.After(time.Second):
		t.Fatal("snapshot was never published")
	}
	close(publisher.release)
	service.WaitPublished()

	assert.True(t, publisher.deadline.Load(), "publish runs under its own timeout")
}

func TestService_GetIndex_CancelledIndependentRefresh(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	client := clientFunc(func(_ context.Context, _ routing.LegRequest) (*routing.Leg, error) {
		calls.Add(1)
		cancel()
		return &routing.Leg{TypicalSeconds: 1000, InTrafficSeconds: 1500, TrafficReported: true}, nil
	})

	service := traffic.NewService(traffic.ServiceConfig{
		Client:         client,
		Corridors:      []traffic.Corridor{corridorA, corridorB, corridorC},
		Logger:         zerolog.Nop(),
		Policy:         traffic.RefreshIndependent,
		MaxConcurrency: 1,
	})

	snap, err := service.GetIndex(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Routes, 3)

	assert.Equal(t, "A", snap.Routes[0].Name)
	assert.True(t, snap.Routes[0].OK())
	for _, r := range snap.Routes[1:] {
		assert.NotEmpty(t, r.Name)
		assert.False(t, r.OK())
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err = service.GetIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load(), "snapshot from a cancelled refresh is not cached")
}

func TestService_GetIndex_UsesDrivingNow(t *testing.T) {
	var got []routing.LegRequest
	var mu sync.Mutex
	client := clientFunc(func(_ context.Context, req routing.LegRequest) (*routing.Leg, error) {
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		return &routing.Leg{TypicalSeconds: 100, InTrafficSeconds: 100}, nil
	})

	_, err := newService(client, newClock(), corridorA).GetIndex(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, routing.ModeDriving, got[0].Mode)
	assert.True(t, got[0].Departure.IsNow())
	assert.Equal(t, "41,29", got[0].Origin)
	assert.Equal(t, "41.1,29.1", got[0].Destination)
}

func TestNewService_DefaultCorridors(t *testing.T) {
	service := traffic.NewService(traffic.ServiceConfig{Client: newMockClient(), Logger: zerolog.Nop()})
	corridors := service.Corridors()
	assert.Len(t, corridors, 8)
	assert.NoError(t, traffic.ValidateCorridors(corridors))
}

func TestParseRefreshPolicy(t *testing.T) {
	p, err := traffic.ParseRefreshPolicy("")
	require.NoError(t, err)
	assert.Equal(t, traffic.RefreshCoalesced, p)

	p, err = traffic.ParseRefreshPolicy("independent")
	require.NoError(t, err)
	assert.Equal(t, traffic.RefreshIndependent, p)

	_, err = traffic.ParseRefreshPolicy("eager")
	assert.Error(t, err)
}

func TestValidateCorridors(t *testing.T) {
	err := traffic.ValidateCorridors([]traffic.Corridor{corridorA, corridorA})
	var cErr *traffic.CorridorError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, 1, cErr.Index)

	bad := traffic.Corridor{Name: "bad", From: geo.Point{Lat: 91}, To: geo.Point{}}
	assert.Error(t, traffic.ValidateCorridors([]traffic.Corridor{bad}))

	assert.Error(t, traffic.ValidateCorridors([]traffic.Corridor{{}}))
}

type clientFunc func(ctx context.Context, req routing.LegRequest) (*routing.Leg, error)

func (f clientFunc) FetchLeg(ctx context.Context, req routing.LegRequest) (*routing.Leg, error) {
	return f(ctx, req)
}

func (f clientFunc) Name() string { return "func" }
