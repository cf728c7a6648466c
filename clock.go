package colada

import "time"

// Clock supplies the current time to the store. Injecting a clock keeps
// staleness checks and snapshot ages deterministic in tests and lets a
// hydrating store run on a completely different clock than the store that
// produced the snapshot.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
