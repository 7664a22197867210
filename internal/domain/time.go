package domain

import (
	"math"
	"time"
)

// Instants outside [EarliestTime, LatestTime] cannot be persisted.
var (
	EarliestTime = time.Unix(0, math.MinInt64).UTC()
	LatestTime   = time.Unix(0, math.MaxInt64).UTC()
)

// InTimeRange reports whether t lies within the persistable range.
func InTimeRange(t time.Time) bool {
	return !t.Before(EarliestTime) && !t.After(LatestTime)
}
