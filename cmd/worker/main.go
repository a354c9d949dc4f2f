// Package main provides the entrypoint for the trafficpulse refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/app"
	"github.com/trafficpulse/trafficpulse/internal/config"
	"github.com/trafficpulse/trafficpulse/internal/telemetry"
	"github.com/trafficpulse/trafficpulse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trafficpulse-worker"

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
		Dur("interval", cfg.Worker.Interval).
		Msg("starting trafficpulse worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.New(ctx, cfg, log, app.Options{Publish: true})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		return
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to release resources")
		}
	}()

	refreshCfg := worker.DefaultRefreshConfig()
	refreshCfg.RefreshWeather = cfg.Worker.WarmWeather
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Logger:  log,
		Index:   services.Traffic,
		Weather: services.Weather,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Worker.HealthPort,
		Handler:      healthMux(job),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.Enabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	runTicker(ctx, job, cfg.Worker.Interval, log)

	log.Info().Msg("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runTicker runs the refresh job immediately and then on every tick until ctx is done.
func runTicker(ctx context.Context, job *worker.RefreshJob, interval time.Duration, log zerolog.Logger) {
	job.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("worker context cancelled")
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}

func healthMux(job *worker.RefreshJob) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})
	return mux
}
