// Package traffic derives a city-wide congestion index from the ratio of
// traffic-aware to typical driving time across a fixed set of corridors.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

// ErrNoData is returned when no corridor produced a usable result.
var ErrNoData = errors.New("no routes computed")

// Corridor is a named origin/destination pair sampled for the index.
type Corridor struct {
	Name string    `json:"name" mapstructure:"name"`
	From geo.Point `json:"from" mapstructure:"from"`
	To   geo.Point `json:"to" mapstructure:"to"`
}

// CorridorError reports an invalid corridor definition.
type CorridorError struct {
	Index  int
	Name   string
	Reason string
}

func (e *CorridorError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("corridor %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("corridor %d (%s): %s", e.Index, e.Name, e.Reason)
}

// CorridorResult is the outcome for one corridor: either IncreasePct or Error is set.
type CorridorResult struct {
	Name        string   `json:"name"`
	IncreasePct *float64 `json:"increasePct,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// OK reports whether the corridor produced a value.
func (r CorridorResult) OK() bool {
	return r.IncreasePct != nil
}

// Snapshot is one computed index. It is never mutated after creation.
type Snapshot struct {
	Index          int              `json:"index"`
	AvgIncreasePct int              `json:"avgIncreasePct"`
	Routes         []CorridorResult `json:"routes"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Counts returns the number of successful and failed corridors.
func (s *Snapshot) Counts() (ok, failed int) {
	for _, r := range s.Routes {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// SnapshotPublisher is notified whenever a new snapshot is computed.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *Snapshot) error
}

// CacheRecorder receives cache hit/miss events.
type CacheRecorder interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// RefreshPolicy controls how concurrent cache misses are served.
type RefreshPolicy string

const (
	// RefreshCoalesced shares one computation among all concurrent misses.
	RefreshCoalesced RefreshPolicy = "coalesced"
	// RefreshIndependent recomputes for every miss.
	RefreshIndependent RefreshPolicy = "independent"
)

// ParseRefreshPolicy parses a policy name. An empty string selects RefreshCoalesced.
func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch RefreshPolicy(s) {
	case "", RefreshCoalesced:
		return RefreshCoalesced, nil
	case RefreshIndependent:
		return RefreshIndependent, nil
	default:
		return "", fmt.Errorf("unknown refresh policy %q", s)
	}
}
