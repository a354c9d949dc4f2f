// Package openmeteo provides a client for the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
	"github.com/trafficpulse/trafficpulse/internal/weather"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo API base URL.
	DefaultBaseURL = "https://api.open-meteo.com"

	currentFields = "temperature_2m,precipitation,weather_code,wind_speed_10m"
	hourlyFields  = "precipitation,precipitation_probability,rain"
	forecastHours = 3
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client. No API key is needed.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetReport fetches current conditions and a three hour precipitation outlook.
func (c *Client) GetReport(ctx context.Context, p geo.Point) (*weather.Report, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(p.Lng, 'f', -1, 64))
	params.Set("timezone", "auto")
	params.Set("current", currentFields)
	params.Set("hourly", hourlyFields)
	params.Set("forecast_hours", strconv.Itoa(forecastHours))

	reqURL := c.baseURL + "/v1/forecast?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	report := fr.toReport(time.Now().UTC())

	c.logger.Debug().
		Float64("lat", p.Lat).
		Float64("lng", p.Lng).
		Int("hours", len(report.Next3h.Time)).
		Msg("received weather from Open-Meteo")

	return report, nil
}

func statusError(statusCode int, body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Reason != "" {
		if statusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", weather.ErrInvalidCoordinates, apiErr.Reason)
		}
		return fmt.Errorf("%w: status %d: %s", weather.ErrProviderUnavailable, statusCode, apiErr.Reason)
	}
	return fmt.Errorf("%w: status %d", weather.ErrProviderUnavailable, statusCode)
}
