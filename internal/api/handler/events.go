package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/trafficpulse/trafficpulse/internal/api/models"
	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/events"
)

// EventsService lists city events around a point in time.
type EventsService interface {
	Upcoming(ctx context.Context, q events.Query) (*events.Response, error)
}

// EventsHandler handles event endpoints.
type EventsHandler struct {
	service EventsService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(service EventsService) *EventsHandler {
	return &EventsHandler{service: service}
}

// Upcoming handles GET /api/events/upcoming?lat=&lng=&radiusKm=.
func (h *EventsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	near, fieldErrs := parseLocation(q)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid location", fieldErrs)
		return
	}

	var radius float64
	if raw := q.Get("radiusKm"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			response.BadRequest(w, r, "radiusKm must be a positive number", []models.FieldError{
				{Field: "radiusKm", Message: "must be a positive number", Code: "invalid_format"},
			})
			return
		}
		radius = v
	}

	resp, err := h.service.Upcoming(r.Context(), events.Query{Near: near, RadiusKm: radius})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}
