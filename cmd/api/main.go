// Package main provides the entrypoint for the trafficpulse API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/api"
	"github.com/trafficpulse/trafficpulse/internal/api/handler"
	"github.com/trafficpulse/trafficpulse/internal/api/middleware"
	"github.com/trafficpulse/trafficpulse/internal/app"
	"github.com/trafficpulse/trafficpulse/internal/config"
	"github.com/trafficpulse/trafficpulse/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trafficpulse-api"

	bootLog := zerolog.New(os.Stderr)

	cfg, err := config.Load("")
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log, err := telemetry.NewLogger(os.Stdout, serviceName, Version, cfg.Log.Level)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid log level")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting trafficpulse API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.OTel.ExporterOTLPEndpoint,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTel.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTel.ExporterOTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	services, err := app.New(ctx, cfg, log, app.Options{
		ProviderMetrics: providerMetrics,
		Publish:         true,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to release resources")
		}
	}()

	log.Info().
		Int("corridors", len(services.Traffic.Corridors())).
		Str("refresh_policy", string(services.Traffic.Policy())).
		Dur("index_ttl", cfg.Index.TTL).
		Msg("traffic index service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Registry:       services.Registry,
		Checks:         readinessChecks(services),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		IndexService:   services.Traffic,
		CommuteService: services.Commute,
		EventsService:  services.Events,
		WeatherService: services.Weather,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a six-mode comparison makes six sequential Directions calls
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func readinessChecks(a *app.App) []handler.Check {
	checks := []handler.Check{
		{
			Name: "traffic-index",
			Probe: func(context.Context) error {
				if len(a.Traffic.Corridors()) == 0 {
					return errors.New("no corridors configured")
				}
				return nil
			},
		},
	}

	if a.Pool != nil {
		checks = append(checks, handler.Check{Name: "events-store", Probe: a.Pool.Ping})
	}

	return checks
}
