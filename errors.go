package colada

import "errors"

// Common cache errors.
var (
	// ErrNoQueryConfig is returned when Refetch or Refresh is called on an
	// entry that has no fetch configuration attached (for example, an entry
	// created by hydration that no consumer has configured yet). This
	// indicates an integration bug and is raised to the caller, never stored
	// on the entry.
	ErrNoQueryConfig = errors.New("entry has no fetch configuration")

	// ErrEntryNotFound is returned by key-addressed operations when no entry
	// exists at the given key.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrEmptyKey is returned when a key with no segments is used where an
	// addressable key is required.
	ErrEmptyKey = errors.New("cache key cannot be empty")

	// ErrInvalidSnapshot is returned by Hydrate when the snapshot bytes do
	// not conform to the transfer format.
	ErrInvalidSnapshot = errors.New("invalid cache snapshot")

	// ErrInvalidStaleTime is returned when a stale-time value is negative or
	// cannot be parsed.
	ErrInvalidStaleTime = errors.New("stale time must be a non-negative duration")
)
