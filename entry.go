package colada

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status describes an entry's position in its fetch state machine.
//
// Entries start pending, move to loading when a fetch begins, and settle in
// success or error. A settled entry cycles back through loading on every
// later fetch; it never returns to pending.
type Status string

// Entry statuses.
const (
	StatusPending Status = "pending"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// operation is one in-flight fetch. The token identifies it against the
// entry's live pending slot: only the operation whose token is still current
// at completion time may commit its result to the entry. The done channel is
// closed exactly once, after data/err are set, so any number of awaiters can
// observe this operation's own outcome even after it has been superseded.
type operation struct {
	token   ulid.ULID
	started time.Time
	done    chan struct{}
	data    any
	err     error
}

// wait blocks until the operation settles or ctx is done. Waiting is
// per-caller only; abandoning a wait never cancels the underlying fetch.
func (o *operation) wait(ctx context.Context) (any, error) {
	select {
	case <-o.done:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Entry is the cached state machine and data holder for one key.
//
// All exported methods are safe for concurrent use. Mutations from a
// completed fetch are applied only when that fetch's token is still the
// entry's live one, so an old slow request can never overwrite the result
// of a newer request that finished first.
type Entry struct {
	store *Store
	path  []string

	mu           sync.Mutex
	cfg          *QueryConfig
	data         any
	hasData      bool
	err          error
	status       Status
	when         time.Time
	pending      *operation
	dependents   map[any]struct{}
	listeners    map[uint64]func(*Entry)
	nextListener uint64
}

func newEntry(store *Store, path []string) *Entry {
	return &Entry{
		store:  store,
		path:   path,
		status: StatusPending,
	}
}

// Key returns the entry's normalized key path.
func (e *Entry) Key() []string {
	out := make([]string, len(e.path))
	copy(out, e.path)
	return out
}

// Data returns the last resolved result and whether one has ever been set.
func (e *Entry) Data() (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data, e.hasData
}

// Err returns the last rejection reason, or nil.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Status returns the entry's current status.
func (e *Entry) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// When returns the completion time of the last resolution. The zero time
// means the entry has never resolved and is stale by construction.
func (e *Entry) When() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.when
}

// IsStale reports whether a Refresh would fetch. Entries in the error state
// and entries that have never resolved are always stale; otherwise the entry
// is stale once the configured stale time has elapsed since last resolution.
func (e *Entry) IsStale() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staleLocked()
}

func (e *Entry) staleLocked() bool {
	if e.status == StatusError || e.when.IsZero() {
		return true
	}
	var threshold time.Duration
	if e.cfg != nil {
		threshold = e.cfg.staleTime()
	} else {
		threshold = DefaultStaleTime
	}
	return e.store.clock.Now().Sub(e.when) > threshold
}

// Refetch unconditionally starts a new fetch and blocks until that fetch
// settles, returning its result. The loading status and the new pending
// operation are visible synchronously, before the fetch itself runs. A
// refetch supersedes (but does not cancel) any fetch already in flight:
// the superseded fetch still settles for its own awaiters, but its result
// is discarded from the entry.
//
// Returns ErrNoQueryConfig when the entry has no fetch configuration.
func (e *Entry) Refetch(ctx context.Context) (any, error) {
	e.mu.Lock()
	op, err := e.beginLocked()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return op.wait(ctx)
}

// Refresh returns the entry's data, fetching only when needed. If a fetch
// is already in flight every Refresh caller awaits that same fetch, so at
// most one fetch runs per entry at a time. Otherwise a fetch starts only
// when the entry is stale (see IsStale); fresh data is returned immediately
// with no side effects.
//
// Returns ErrNoQueryConfig when the entry has no fetch configuration.
func (e *Entry) Refresh(ctx context.Context) (any, error) {
	e.mu.Lock()
	if e.cfg == nil || e.cfg.Query == nil {
		e.mu.Unlock()
		return nil, ErrNoQueryConfig
	}
	if op := e.pending; op != nil {
		e.mu.Unlock()
		e.store.stats.dedups.Add(1)
		return op.wait(ctx)
	}
	if !e.staleLocked() {
		data := e.data
		e.mu.Unlock()
		e.store.stats.freshHits.Add(1)
		return data, nil
	}
	op, err := e.beginLocked()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return op.wait(ctx)
}

// beginLocked installs a new pending operation, marks the entry loading and
// starts the fetch. Callers must hold e.mu.
func (e *Entry) beginLocked() (*operation, error) {
	if e.cfg == nil || e.cfg.Query == nil {
		return nil, ErrNoQueryConfig
	}
	op := &operation{
		token:   ulid.Make(),
		started: e.store.clock.Now(),
		done:    make(chan struct{}),
	}
	e.pending = op
	e.status = StatusLoading
	e.store.stats.fetches.Add(1)
	go e.run(op, e.cfg.Query)
	return op, nil
}

// run executes one fetch and commits its outcome if the operation is still
// the entry's live one. Superseded outcomes are dropped silently.
func (e *Entry) run(op *operation, query QueryFunc) {
	data, err := query(context.Background())

	e.mu.Lock()
	committed := e.pending == op
	if committed {
		if err != nil {
			e.err = err
			e.status = StatusError
			e.store.stats.failures.Add(1)
		} else {
			e.data = data
			e.hasData = true
			e.err = nil
			e.status = StatusSuccess
		}
		e.when = e.store.clock.Now()
		e.pending = nil
	} else {
		e.store.stats.discards.Add(1)
	}
	listeners := e.listenersLocked()
	e.mu.Unlock()

	op.data = data
	op.err = err
	if committed {
		// Listeners run before awaiters wake, so a caller returning from
		// Refetch never observes the entry ahead of its subscribers.
		e.notify(listeners)
	}
	close(op.done)

	if committed {
		e.store.logger.Debug().
			Strs("key", e.path).
			Dur("took", e.store.clock.Now().Sub(op.started)).
			Err(err).
			Msg("fetch settled")
	} else {
		e.store.logger.Debug().
			Strs("key", e.path).
			Str("token", op.token.String()).
			Msg("superseded fetch discarded")
	}
}

// SetData synchronously overwrites the entry's data and clears any error.
// The resolution timestamp is untouched, so setting data does not make a
// stale entry fresh. An entry that was pending or errored becomes success.
func (e *Entry) SetData(value any) {
	e.UpdateData(func(any) any { return value })
}

// UpdateData applies update to the current data in place. Semantics match
// SetData; update receives the current value (nil when none was ever set).
func (e *Entry) UpdateData(update func(old any) any) {
	e.mu.Lock()
	e.data = update(e.data)
	e.hasData = true
	e.err = nil
	if e.status != StatusLoading {
		e.status = StatusSuccess
	}
	listeners := e.listenersLocked()
	e.mu.Unlock()
	e.notify(listeners)
}

// Invalidate marks the entry stale by zeroing its resolution timestamp.
// When refetch is set and the entry is configured, any in-flight operation
// is discarded from tracking and a new fetch starts in the background;
// fetch failures are logged, not raised. Unconfigured entries only go
// stale.
func (e *Entry) Invalidate(refetch bool) {
	e.mu.Lock()
	e.when = time.Time{}
	var op *operation
	if refetch && e.cfg != nil && e.cfg.Query != nil {
		e.pending = nil
		op, _ = e.beginLocked()
	}
	listeners := e.listenersLocked()
	e.mu.Unlock()
	e.notify(listeners)

	if op != nil {
		go func() {
			<-op.done
			if op.err != nil {
				e.store.logger.Warn().
					Strs("key", e.path).
					Err(op.err).
					Msg("invalidate refetch failed")
			}
		}()
	}
}

// AddDependent registers an opaque owner token holding this entry alive.
// Tokens are only compared for equality and must be comparable values.
func (e *Entry) AddDependent(owner any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dependents == nil {
		e.dependents = make(map[any]struct{})
	}
	e.dependents[owner] = struct{}{}
}

// RemoveDependent releases an owner token and returns the number of
// dependents remaining. An entry with zero dependents is eligible for
// removal via Store.Remove or Store.Sweep; removal is deliberately not
// automatic, to tolerate transient owner churn.
func (e *Entry) RemoveDependent(owner any) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dependents, owner)
	return len(e.dependents)
}

// HasDependents reports whether any owner token is registered.
func (e *Entry) HasDependents() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dependents) > 0
}
