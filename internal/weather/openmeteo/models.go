package openmeteo

import (
	"time"

	"github.com/trafficpulse/trafficpulse/internal/weather"
)

// forecastResponse represents the /v1/forecast response. Older deployments
// return current_weather instead of current.
type forecastResponse struct {
	Latitude       float64       `json:"latitude"`
	Longitude      float64       `json:"longitude"`
	Timezone       string        `json:"timezone,omitempty"`
	Current        *currentBlock `json:"current,omitempty"`
	CurrentWeather *currentBlock `json:"current_weather,omitempty"`
	Hourly         *hourlyBlock  `json:"hourly,omitempty"`
}

type currentBlock struct {
	Time          string   `json:"time,omitempty"`
	Temperature2m *float64 `json:"temperature_2m"`
	Temperature   *float64 `json:"temperature"`
	Precipitation *float64 `json:"precipitation"`
	WeatherCode   *int     `json:"weather_code"`
	WeatherCodeV0 *int     `json:"weathercode"`
	WindSpeed10m  *float64 `json:"wind_speed_10m"`
	WindSpeedV0   *float64 `json:"windspeed"`
}

type hourlyBlock struct {
	Time                     []string  `json:"time"`
	Precipitation            []float64 `json:"precipitation"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	Rain                     []float64 `json:"rain"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (r *forecastResponse) toReport(now time.Time) *weather.Report {
	cur := r.Current
	if cur == nil {
		cur = r.CurrentWeather
	}
	if cur == nil {
		cur = &currentBlock{}
	}

	current := weather.Current{
		Temperature: firstFloat(cur.Temperature2m, cur.Temperature),
		WeatherCode: cur.WeatherCode,
		WindSpeed:   firstFloat(cur.WindSpeed10m, cur.WindSpeedV0),
	}
	if current.WeatherCode == nil {
		current.WeatherCode = cur.WeatherCodeV0
	}
	if cur.Precipitation != nil {
		current.Precipitation = *cur.Precipitation
	}
	current.Condition = weather.ConditionFromWMO(current.WeatherCode)

	hourly := weather.Hourly{
		Time:          []string{},
		Precipitation: []float64{},
		Probability:   []float64{},
		Rain:          []float64{},
	}
	if h := r.Hourly; h != nil {
		hourly.Time = orEmpty(h.Time)
		hourly.Precipitation = orEmpty(h.Precipitation)
		hourly.Probability = orEmpty(h.PrecipitationProbability)
		hourly.Rain = orEmpty(h.Rain)
	}

	return &weather.Report{
		Current:   current,
		Next3h:    hourly,
		UpdatedAt: now,
	}
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
