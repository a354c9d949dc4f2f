package handler

import (
	"context"
	"net/http"

	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// WeatherService reports short-range weather for a location.
type WeatherService interface {
	GetReport(ctx context.Context, p *geo.Point) (*weather.Report, error)
}

// WeatherHandler handles the weather endpoint.
type WeatherHandler struct {
	service WeatherService
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service WeatherService) *WeatherHandler {
	return &WeatherHandler{service: service}
}

// GetWeather handles GET /api/weather?lat=&lng=. Without coordinates the
// service default location is used.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	loc, fieldErrs := parseLocation(r.URL.Query())
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", fieldErrs)
		return
	}

	report, err := h.service.GetReport(r.Context(), loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, report)
}
