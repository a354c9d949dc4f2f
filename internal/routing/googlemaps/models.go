package googlemaps

// Provider status values returned in the "status" field.
const (
	statusOK              = "OK"
	statusZeroResults     = "ZERO_RESULTS"
	statusRequestDenied   = "REQUEST_DENIED"
	statusOverQueryLimit  = "OVER_QUERY_LIMIT"
	statusInvalidRequest  = "INVALID_REQUEST"
	statusMaxWaypoints    = "MAX_WAYPOINTS_EXCEEDED"
	statusUnknownError    = "UNKNOWN_ERROR"
	defaultNoRouteMessage = "Directions route not found"
)

// directionsResponse represents the Directions API JSON response.
type directionsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Routes       []route `json:"routes"`
}

type route struct {
	Summary          string    `json:"summary,omitempty"`
	Legs             []leg     `json:"legs"`
	OverviewPolyline *polyline `json:"overview_polyline,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
}

type polyline struct {
	Points string `json:"points"`
}

type leg struct {
	Duration          *textValue `json:"duration,omitempty"`
	DurationInTraffic *textValue `json:"duration_in_traffic,omitempty"`
	Distance          *textValue `json:"distance,omitempty"`
	StartAddress      string     `json:"start_address,omitempty"`
	EndAddress        string     `json:"end_address,omitempty"`
	Steps             []step     `json:"steps,omitempty"`
}

// textValue is the {text, value} pair used for durations (seconds) and distances (meters).
type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type step struct {
	HTMLInstructions string `json:"html_instructions"`
	TravelMode       string `json:"travel_mode,omitempty"`
}
