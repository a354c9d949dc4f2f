// Package models provides response envelopes shared by the trafficpulse API handlers.
package models

import "time"

// HealthStatus represents the health status of a service or provider.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Worst returns the more severe of two statuses.
func (s HealthStatus) Worst(other HealthStatus) HealthStatus {
	rank := func(h HealthStatus) int {
		switch h {
		case HealthStatusFail:
			return 2
		case HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(other) > rank(s) {
		return other
	}
	return s
}

// Timestamp is a time.Time that always marshals as RFC 3339 in UTC.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(time.RFC3339) + `"`), nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
