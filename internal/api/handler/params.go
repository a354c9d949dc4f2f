package handler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/trafficpulse/trafficpulse/internal/api/models"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// parseLocation reads the optional lat/lng query pair. Both absent yields nil.
func parseLocation(q url.Values) (*geo.Point, []models.FieldError) {
	latStr := strings.TrimSpace(q.Get("lat"))
	lngStr := strings.TrimSpace(q.Get("lng"))
	if latStr == "" && lngStr == "" {
		return nil, nil
	}

	var errs []models.FieldError
	lat, ok := parseFloatParam("lat", latStr, &errs)
	lng, ok2 := parseFloatParam("lng", lngStr, &errs)
	if !ok || !ok2 {
		return nil, errs
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return nil, []models.FieldError{{Field: "lat,lng", Message: err.Error(), Code: "out_of_range"}}
	}
	return &p, nil
}

func parseFloatParam(name, raw string, errs *[]models.FieldError) (float64, bool) {
	if raw == "" {
		*errs = append(*errs, models.FieldError{Field: name, Message: name + " is required with the other coordinate", Code: "required"})
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, models.FieldError{Field: name, Message: name + " must be a number", Code: "invalid_format"})
		return 0, false
	}
	return v, true
}
