// Package journal keeps a durable history of probe readings, written off the
// event loop by the event bus.
package journal

import "time"

// QueryOptions controls filtering and pagination for reading queries.
type QueryOptions struct {
	Channel string     // filter to one channel ("temperature", "water_level")
	Since   *time.Time // inclusive lower bound
	Until   *time.Time // inclusive upper bound
	Limit   int        // max results (default: 100, max: 1000)
}

// DefaultQueryOptions returns QueryOptions covering the last 24 hours.
func DefaultQueryOptions() QueryOptions {
	since := time.Now().Add(-24 * time.Hour)
	return QueryOptions{
		Since: &since,
		Limit: DefaultLimit,
	}
}

// Query limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > MaxLimit {
		return DefaultLimit
	}
	return o.Limit
}
