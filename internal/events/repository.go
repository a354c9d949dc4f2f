package events

import (
	"context"
	"time"
)

// ListOptions narrows a listing.
type ListOptions struct {
	// EndsAfter drops events that ended before this time. Zero keeps all.
	EndsAfter time.Time
}

// Repository provides read access to the event calendar.
type Repository interface {
	// List returns events ordered by start time.
	List(ctx context.Context, opts ListOptions) ([]Event, error)
}
