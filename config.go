package colada

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Stale-time defaults and environment overrides.
const (
	// DefaultStaleTime is the staleness threshold applied when a query
	// config does not set one (5 seconds, matching interactive UI usage).
	DefaultStaleTime = 5 * time.Second

	// EnvStaleTime overrides the default staleness threshold. Accepts the
	// same formats as ParseStaleTime.
	EnvStaleTime = "COLADA_STALE_TIME"
)

// QueryFunc is the caller-supplied asynchronous fetch. The cache invokes it
// at most once per concurrent window per entry and expects exactly one
// success or failure outcome. The context is the operation's own context,
// not any individual awaiter's: a superseded operation still runs to
// completion, so cancellation of one caller never cancels the fetch.
type QueryFunc func(ctx context.Context) (any, error)

// QueryConfig is the per-key fetch configuration attached to an entry.
// Config attachment is first-writer-wins: once an entry has a config,
// later EnsureEntry calls for the same key do not overwrite it.
type QueryConfig struct {
	// Key addresses the entry's slot in the hierarchical index.
	Key Key

	// Query performs the fetch. An entry without a query (for example one
	// created by hydration) can hold data but rejects Refetch and Refresh
	// with ErrNoQueryConfig.
	Query QueryFunc

	// StaleTime is the duration after which resolved data is considered
	// outdated by Refresh. Zero means "use DefaultStaleTime"; data in the
	// error state is always stale regardless of this threshold.
	StaleTime time.Duration

	// InitialData, when set, seeds a freshly created entry's data. The
	// entry's resolution timestamp stays zero, so the seed is stale by
	// construction and the first Refresh still fetches.
	InitialData func() any
}

// staleTime returns the effective threshold for this config.
func (c *QueryConfig) staleTime() time.Duration {
	if c.StaleTime > 0 {
		return c.StaleTime
	}
	return DefaultStaleTime
}

// StaleTimeFromEnv reads the staleness threshold override from the
// environment, falling back to DefaultStaleTime when unset or invalid.
func StaleTimeFromEnv() time.Duration {
	v := os.Getenv(EnvStaleTime)
	if v == "" {
		return DefaultStaleTime
	}
	d, err := ParseStaleTime(v)
	if err != nil {
		return DefaultStaleTime
	}
	return d
}

// ParseStaleTime parses a stale-time string in either format:
// - Integer seconds: "30".
// - Duration string: "30s", "5m", "1h30m".
func ParseStaleTime(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: got %d seconds", ErrInvalidStaleTime, secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStaleTime, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidStaleTime, d)
	}
	return d, nil
}
