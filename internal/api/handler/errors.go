// Package handler provides HTTP handlers for the trafficpulse API.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/commute"
	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
	"github.com/trafficpulse/trafficpulse/internal/routing"
	"github.com/trafficpulse/trafficpulse/internal/traffic"
	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// writeServiceError maps a service error onto a Problem response.
// An open circuit is 503, caller mistakes are 400 and everything else is 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, err.Error())
	case errors.Is(err, commute.ErrBadRequest):
		response.BadRequest(w, r, strings.TrimPrefix(err.Error(), commute.ErrBadRequest.Error()+": "), nil)
	case errors.Is(err, weather.ErrInvalidCoordinates), errors.Is(err, geo.ErrInvalidPoint):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, traffic.ErrNoData):
		response.InternalError(w, r, err.Error())
	default:
		response.UpstreamError(w, r, errorMessage(err))
	}
}

// errorMessage prefers the provider's own message over the wrapped chain.
func errorMessage(err error) string {
	var rErr *routing.Error
	if errors.As(err, &rErr) && rErr.Message != "" {
		return rErr.Message
	}
	return err.Error()
}
