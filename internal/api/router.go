// Package api provides the HTTP API for trafficpulse.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/api/handler"
	"github.com/trafficpulse/trafficpulse/internal/api/middleware"
	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	Registry       *resilience.Registry
	Checks         []handler.Check
	AllowedOrigins []string

	IndexService   handler.IndexService
	CommuteService handler.CommuteService
	EventsService  handler.EventsService
	WeatherService handler.WeatherService
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trafficpulse-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	indexHandler := handler.NewIndexHandler(cfg.IndexService)
	commuteHandler := handler.NewCommuteHandler(cfg.CommuteService)
	eventsHandler := handler.NewEventsHandler(cfg.EventsService)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService)

	// Commute fans out one Directions call per mode, so it gets the tighter limit.
	commuteRateLimit := middleware.RateLimitByIP(middleware.CommuteRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/index", indexHandler.GetIndex)
		r.With(commuteRateLimit).Get("/commute", commuteHandler.Compare)
		r.With(standardRateLimit).Get("/events/upcoming", eventsHandler.Upcoming)
		r.With(standardRateLimit).Get("/weather", weatherHandler.GetWeather)
	})

	return r
}
