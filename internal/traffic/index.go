package traffic

import (
	"math"
	"time"
)

const (
	minIndex = 1
	maxIndex = 99
)

// IncreasePct returns the percentage by which inTraffic exceeds normal.
func IncreasePct(normalSeconds, inTrafficSeconds int) float64 {
	return (float64(inTrafficSeconds)/float64(normalSeconds) - 1) * 100
}

// BuildSnapshot aggregates corridor results into a snapshot. Failed corridors
// are kept in Routes but excluded from the average.
func BuildSnapshot(results []CorridorResult, now time.Time) (*Snapshot, error) {
	var sum float64
	var ok int
	for _, r := range results {
		if r.OK() {
			sum += *r.IncreasePct
			ok++
		}
	}
	if ok == 0 {
		return nil, ErrNoData
	}

	avg := sum / float64(ok)

	return &Snapshot{
		Index:          congestionIndex(avg),
		AvgIncreasePct: roundInt(avg),
		Routes:         results,
		UpdatedAt:      now,
	}, nil
}

// congestionIndex maps the average increase onto [1, 99].
func congestionIndex(avg float64) int {
	v := round(1 + avg)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return minIndex
	}
	return int(math.Max(minIndex, math.Min(maxIndex, v)))
}

// round rounds half toward positive infinity, so -2.5 becomes -2.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundInt(x float64) int {
	v := round(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(v)
}
