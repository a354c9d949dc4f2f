package handler

import (
	"context"
	"net/http"

	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/traffic"
)

// IndexService computes the city-wide congestion index.
type IndexService interface {
	GetIndex(ctx context.Context) (*traffic.Snapshot, error)
}

// IndexHandler handles the traffic index endpoint.
type IndexHandler struct {
	service IndexService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(service IndexService) *IndexHandler {
	return &IndexHandler{service: service}
}

// GetIndex handles GET /api/index.
func (h *IndexHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetIndex(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}
