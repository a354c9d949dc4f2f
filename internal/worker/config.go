// Package worker provides background jobs that keep the trafficpulse caches warm.
package worker

import (
	"sort"
	"time"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// RefreshTarget is a named point whose weather report is kept warm.
type RefreshTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Point is the location queried.
	Point geo.Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Targets are the weather points to warm.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent weather refreshes.
	// Default: 3
	Concurrency int

	// Timeout bounds the index recomputation and each weather refresh.
	// Default: 30 seconds
	Timeout time.Duration

	// RefreshIndex recomputes the traffic index on every run.
	RefreshIndex bool

	// RefreshWeather warms the weather cache for every target.
	RefreshWeather bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:        DefaultRefreshTargets(),
		Concurrency:    3,
		Timeout:        30 * time.Second,
		RefreshIndex:   true,
		RefreshWeather: true,
	}
}

// DefaultRefreshTargets returns Istanbul districts on both sides of the Bosphorus.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{Name: "Sultanahmet", Priority: 1, Point: geo.Point{Lat: 41.01, Lng: 28.97}},
		{Name: "Kadıköy", Priority: 1, Point: geo.Point{Lat: 40.9909, Lng: 29.0303}},
		{Name: "Maslak", Priority: 1, Point: geo.Point{Lat: 41.1086, Lng: 29.0206}},
		{Name: "Bakırköy", Priority: 2, Point: geo.Point{Lat: 40.9807, Lng: 28.8721}},
		{Name: "Ümraniye", Priority: 2, Point: geo.Point{Lat: 41.0256, Lng: 29.0972}},
		{Name: "Beylikdüzü", Priority: 3, Point: geo.Point{Lat: 41.0018, Lng: 28.6401}},
		{Name: "Kartal", Priority: 3, Point: geo.Point{Lat: 40.9076, Lng: 29.2278}},
	}
}

// OrderedTargets returns the targets sorted by priority, keeping the
// configured order within a priority.
func (c RefreshConfig) OrderedTargets() []RefreshTarget {
	out := make([]RefreshTarget, len(c.Targets))
	copy(out, c.Targets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
