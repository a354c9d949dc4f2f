package handler

import (
	"context"
	"net/http"

	"github.com/trafficpulse/trafficpulse/internal/api/models"
	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/commute"
)

// CommuteService compares travel modes between two points.
type CommuteService interface {
	Compare(ctx context.Context, req commute.Request) (*commute.Response, error)
}

// CommuteHandler handles the commute comparison endpoint.
type CommuteHandler struct {
	service CommuteService
}

// NewCommuteHandler creates a new CommuteHandler.
func NewCommuteHandler(service CommuteService) *CommuteHandler {
	return &CommuteHandler{service: service}
}

// Compare handles GET /api/commute?from=&to=&modes=&departAt=.
func (h *CommuteHandler) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	departAt, err := commute.ParseDepartAt(q.Get("departAt"))
	if err != nil {
		response.BadRequest(w, r, "departAt must be an RFC 3339 timestamp", []models.FieldError{
			{Field: "departAt", Message: err.Error(), Code: "invalid_format"},
		})
		return
	}

	resp, err := h.service.Compare(r.Context(), commute.Request{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Modes:    q.Get("modes"),
		DepartAt: departAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}
