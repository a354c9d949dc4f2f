// Package googlemaps provides a client for the Google Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
	"github.com/trafficpulse/trafficpulse/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "google-directions"

	// DefaultBaseURL is the Directions API endpoint.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Directions client.
type ClientConfig struct {
	// APIKey is the server-side Maps key.
	APIKey string

	// BaseURL overrides the Directions endpoint (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a resilient client with zero retries is used.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Directions API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Directions client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 0
		clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchLeg retrieves the first leg of the first route between req.Origin and req.Destination.
func (c *Client) FetchLeg(ctx context.Context, req routing.LegRequest) (*routing.Leg, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(req), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Str("mode", string(req.Mode)).
		Str("departure", req.Departure.String()).
		Msg("requesting directions")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		code := "REQUEST_FAILED"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			code = "CIRCUIT_OPEN"
		}
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", resp.StatusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	var dr directionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(dr.Routes) == 0 || len(dr.Routes[0].Legs) == 0 {
		return nil, statusError(dr.Status, dr.ErrorMessage)
	}

	return toLeg(&dr.Routes[0]), nil
}

// requestURL builds the query string. Driving asks for traffic-aware
// durations; transit only takes a departure time.
func (c *Client) requestURL(req routing.LegRequest) string {
	params := url.Values{}
	params.Set("origin", req.Origin)
	params.Set("destination", req.Destination)
	params.Set("mode", string(req.Mode))
	params.Set("key", c.apiKey)

	if req.Mode.UsesDeparture() {
		params.Set("departure_time", req.Departure.String())
	}
	if req.Mode == routing.ModeDriving {
		params.Set("traffic_model", "best_guess")
	}

	return c.baseURL + "?" + params.Encode()
}

// statusError maps an empty response to a routing error. The provider message wins when present.
func statusError(status, message string) error {
	msg := message
	if msg == "" {
		msg = defaultNoRouteMessage
	}

	sentinel := routing.ErrNoRouteFound
	switch status {
	case statusRequestDenied:
		sentinel = routing.ErrProviderUnavailable
	case statusOverQueryLimit:
		sentinel = routing.ErrRateLimitExceeded
	case statusInvalidRequest, statusMaxWaypoints:
		sentinel = routing.ErrInvalidRequest
	case statusUnknownError:
		sentinel = routing.ErrProviderUnavailable
	}

	code := status
	if code == "" || code == statusOK {
		code = statusZeroResults
	}

	return &routing.Error{
		Provider: ProviderName,
		Code:     code,
		Message:  msg,
		Err:      sentinel,
	}
}

func toLeg(r *route) *routing.Leg {
	l := &r.Legs[0]
	out := &routing.Leg{}

	if l.Duration != nil {
		out.TypicalSeconds = positiveInt(l.Duration.Value)
	}
	if l.DurationInTraffic != nil && l.DurationInTraffic.Value > 0 {
		out.InTrafficSeconds = positiveInt(l.DurationInTraffic.Value)
		out.TrafficReported = true
	} else {
		out.InTrafficSeconds = out.TypicalSeconds
	}
	if l.Distance != nil {
		out.DistanceMeters = positiveInt(l.Distance.Value)
	}
	if r.OverviewPolyline != nil {
		out.Polyline = r.OverviewPolyline.Points
	}

	for i := range l.Steps {
		if strings.Contains(strings.ToLower(l.Steps[i].HTMLInstructions), "toll") {
			out.HasToll = true
			break
		}
	}

	return out
}

func positiveInt(v float64) int {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
