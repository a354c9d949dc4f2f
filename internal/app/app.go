// Package app assembles the trafficpulse services from configuration. The
// API server, the worker and trafficctl share the same service graph.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/api/middleware"
	"github.com/trafficpulse/trafficpulse/internal/commute"
	"github.com/trafficpulse/trafficpulse/internal/config"
	"github.com/trafficpulse/trafficpulse/internal/database"
	"github.com/trafficpulse/trafficpulse/internal/events"
	"github.com/trafficpulse/trafficpulse/internal/notify"
	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
	"github.com/trafficpulse/trafficpulse/internal/routing"
	"github.com/trafficpulse/trafficpulse/internal/routing/googlemaps"
	"github.com/trafficpulse/trafficpulse/internal/traffic"
	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/internal/weather/openmeteo"
)

// Options tunes which optional collaborators are attached.
type Options struct {
	// ProviderMetrics records routing calls and index cache activity (optional).
	ProviderMetrics *middleware.ProviderMetrics

	// Publish attaches the Kafka publisher when Kafka is configured.
	Publish bool
}

// App holds the wired services.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *resilience.Registry

	Routing *routing.Service
	Traffic *traffic.Service
	Commute *commute.Service
	Events  *events.Service
	Weather *weather.Service

	// EventsRepo is the repository behind Events.
	EventsRepo events.Repository

	// Pool is the PostgreSQL pool, nil unless the postgres events source is used.
	Pool *pgxpool.Pool

	publisher *notify.Publisher
}

// New builds every service described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: resilience.NewRegistry(),
	}

	directions := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:   cfg.GoogleMaps.ServerKey,
		BaseURL:  cfg.Directions.BaseURL,
		Timeout:  cfg.Routing.Timeout,
		Registry: a.Registry,
		Logger:   log,
	})
	if cfg.GoogleMaps.ServerKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_SERVER_KEY is not set, directions calls will be rejected")
	}

	routingCfg := routing.ServiceConfig{Client: directions, Logger: log}
	if opts.ProviderMetrics != nil {
		routingCfg.Metrics = opts.ProviderMetrics
	}
	a.Routing = routing.NewService(routingCfg)

	trafficCfg := traffic.ServiceConfig{
		Client:             a.Routing,
		Corridors:          cfg.Corridors,
		Logger:             log,
		TTL:                cfg.Index.TTL,
		Policy:             cfg.RefreshPolicy(),
		MaxConcurrency:     cfg.Index.MaxConcurrency,
		RequireTrafficData: cfg.Index.RequireTraffic,
	}
	if opts.ProviderMetrics != nil {
		trafficCfg.Metrics = opts.ProviderMetrics
	}
	if opts.Publish && cfg.Kafka.Enabled() {
		a.publisher = notify.NewPublisher(notify.PublisherConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.IndexTopic,
			Logger:  log,
		})
		trafficCfg.Publisher = a.publisher
		log.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.IndexTopic).
			Msg("index snapshots will be published to Kafka")
	}
	a.Traffic = traffic.NewService(trafficCfg)

	a.Commute = commute.NewService(commute.ServiceConfig{
		Client:   a.Routing,
		Logger:   log,
		MaxModes: cfg.Commute.MaxModes,
	})

	repo, err := a.eventsRepository(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.EventsRepo = repo
	a.Events = events.NewService(events.ServiceConfig{Repository: repo, Logger: log})

	a.Weather = weather.NewService(weather.ServiceConfig{
		Provider: openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:  cfg.Weather.BaseURL,
			Registry: a.Registry,
			Logger:   log,
		}),
		Logger:   log,
		CacheTTL: cfg.Weather.CacheTTL,
	})

	return a, nil
}

func (a *App) eventsRepository(ctx context.Context) (events.Repository, error) {
	switch a.Config.Events.Source {
	case config.EventsSourcePostgres:
		pool, err := database.Connect(ctx, a.Config.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to events database: %w", err)
		}
		a.Pool = pool

		repo := events.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("preparing events schema: %w", err)
		}
		if len(a.Config.Events.Items) > 0 {
			if err := repo.Upsert(ctx, a.Config.Events.Items); err != nil {
				return nil, fmt.Errorf("seeding events: %w", err)
			}
		}

		a.Logger.Info().
			Str("host", a.Config.DB.Host).
			Int("port", a.Config.DB.Port).
			Str("database", a.Config.DB.Database).
			Msg("events served from PostgreSQL")
		return repo, nil

	default:
		items := a.Config.Events.Items
		if len(items) == 0 {
			items = events.DefaultEvents()
		}
		a.Logger.Info().Int("events", len(items)).Msg("events served from memory")
		return events.NewInMemoryRepository(items), nil
	}
}

// Close releases the database pool and the Kafka writer.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		a.Traffic.WaitPublished()
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
