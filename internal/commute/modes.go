package commute

import (
	"fmt"
	"strings"
	"time"

	"github.com/trafficpulse/trafficpulse/internal/routing"
)

// DefaultModes are compared when the request names none.
var DefaultModes = []routing.Mode{routing.ModeDriving, routing.ModeTransit, routing.ModeWalking}

// ParseModes splits a comma-separated mode list. Entries are trimmed and
// lower-cased, empty entries dropped and unknown modes passed through.
// More than maxModes entries is an error; maxModes <= 0 disables the check.
func ParseModes(s string, maxModes int) ([]routing.Mode, error) {
	var modes []routing.Mode
	for _, part := range strings.Split(s, ",") {
		m := strings.ToLower(strings.TrimSpace(part))
		if m == "" {
			continue
		}
		modes = append(modes, routing.Mode(m))
	}

	if len(modes) == 0 {
		out := make([]routing.Mode, len(DefaultModes))
		copy(out, DefaultModes)
		return out, nil
	}

	if maxModes > 0 && len(modes) > maxModes {
		return nil, fmt.Errorf("%w: at most %d modes allowed, got %d", ErrBadRequest, maxModes, len(modes))
	}

	return modes, nil
}

// ParseDepartAt parses an RFC 3339 departure time. An empty string means now.
func ParseDepartAt(s string) (*time.Time, error) {
	if s == "" || strings.EqualFold(s, "now") {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: departAt must be RFC 3339, got %q", ErrBadRequest, s)
	}
	return &t, nil
}
