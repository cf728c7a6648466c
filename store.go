package colada

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Store is the cache engine: it owns the hierarchical key index, creates
// and looks up entries, applies invalidation and data mutation across key
// subtrees, and prunes entries released by every dependent.
//
// Construct exactly one Store per logical session and thread it explicitly
// through call sites; server-rendered applications typically build one per
// request for isolation. All methods are safe for concurrent use.
type Store struct {
	root   *node
	clock  Clock
	logger zerolog.Logger
	stats  storeStats

	// mu guards the tree shape (root and all nodes). Entry state has its
	// own per-entry lock; the two are never held together except tree lock
	// first.
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock. Used by tests and by hydration
// scenarios that need deterministic elapsed times.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the store's structured logger. The default discards
// everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty cache store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		root:   newNode(),
		clock:  systemClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureEntry looks up or creates the entry at cfg.Key and returns it.
// The config is attached only if the entry does not already have one:
// first writer wins, and later calls with a different config for the same
// key leave the original in place. InitialData seeds a freshly created
// entry's data without stamping a resolution time, so seeded data is stale
// by construction.
func (s *Store) EnsureEntry(cfg QueryConfig) (*Entry, error) {
	path, err := cfg.Key.Normalize()
	if err != nil {
		return nil, fmt.Errorf("ensure entry: %w", err)
	}

	s.mu.Lock()
	n := s.root.ensure(path)
	created := n.entry == nil
	if created {
		n.entry = newEntry(s, path)
		s.stats.entries.Add(1)
	}
	e := n.entry
	s.mu.Unlock()

	e.mu.Lock()
	if e.cfg == nil {
		c := cfg
		e.cfg = &c
		if created && !e.hasData && c.InitialData != nil {
			e.data = c.InitialData()
			e.hasData = true
			e.status = StatusSuccess
		}
	}
	e.mu.Unlock()

	if created {
		s.logger.Debug().Strs("key", path).Msg("entry created")
	}
	return e, nil
}

// Lookup returns the entry at key, if one exists. Unlike EnsureEntry it
// never creates.
func (s *Store) Lookup(key Key) (*Entry, bool) {
	path, err := key.Normalize()
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.root.lookup(path)
	if n == nil || n.entry == nil {
		return nil, false
	}
	return n.entry, true
}

// InvalidateEntry marks the entry at key and every descendant entry stale.
// When refetch is set, each affected configured entry also starts a
// background refetch. Returns ErrEntryNotFound when no node exists at key.
func (s *Store) InvalidateEntry(key Key, refetch bool) error {
	path, err := key.Normalize()
	if err != nil {
		return fmt.Errorf("invalidate entry: %w", err)
	}

	s.mu.RLock()
	n := s.root.lookup(path)
	var entries []*Entry
	if n != nil {
		n.walk(path, func(_ []string, n *node) {
			if n.entry != nil {
				entries = append(entries, n.entry)
			}
		})
	}
	s.mu.RUnlock()

	if n == nil {
		return fmt.Errorf("invalidate entry %s: %w", key, ErrEntryNotFound)
	}
	for _, e := range entries {
		e.Invalidate(refetch)
	}
	s.logger.Debug().Strs("key", path).Int("entries", len(entries)).Bool("refetch", refetch).
		Msg("invalidated subtree")
	return nil
}

// SetEntryData overwrites the data of the single entry at key (descendants
// are not touched). Returns ErrEntryNotFound when no entry exists at key.
func (s *Store) SetEntryData(key Key, value any) error {
	e, ok := s.Lookup(key)
	if !ok {
		return fmt.Errorf("set entry data %s: %w", key, ErrEntryNotFound)
	}
	e.SetData(value)
	return nil
}

// UpdateEntryData applies update to the data of the single entry at key.
// Returns ErrEntryNotFound when no entry exists at key.
func (s *Store) UpdateEntryData(key Key, update func(old any) any) error {
	e, ok := s.Lookup(key)
	if !ok {
		return fmt.Errorf("update entry data %s: %w", key, ErrEntryNotFound)
	}
	e.UpdateData(update)
	return nil
}

// Prefetch starts a background refetch of an existing entry. Prefetching a
// key with no entry cannot create one (there is no configuration to attach),
// so a miss is logged and dropped; fetch failures are likewise logged, never
// raised.
func (s *Store) Prefetch(ctx context.Context, key Key) {
	e, ok := s.Lookup(key)
	if !ok {
		s.logger.Debug().Str("key", key.String()).Msg("prefetch skipped, no entry")
		return
	}
	go func() {
		if _, err := e.Refetch(ctx); err != nil {
			s.logger.Warn().Strs("key", e.path).Err(err).Msg("prefetch failed")
		}
	}()
}

// Remove prunes the entry at key from the index, provided it has no
// dependents. Empty intermediate nodes left behind are pruned as well.
// Reports whether an entry was removed.
func (s *Store) Remove(key Key) bool {
	path, err := key.Normalize()
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.root.lookup(path)
	if n == nil || n.entry == nil || n.entry.HasDependents() {
		return false
	}
	n.entry = nil
	s.stats.entries.Add(-1)
	s.root.prune(path)
	s.logger.Debug().Strs("key", path).Msg("entry removed")
	return true
}

// Sweep prunes every dependent-free entry and returns how many were
// removed. This is the deferred garbage-collection pass: the orchestration
// layer calls it at its own cadence rather than on every dependent release,
// so an entry survives a consumer detaching and immediately re-attaching.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims [][]string
	s.root.walk(nil, func(path []string, n *node) {
		if n.entry != nil && !n.entry.HasDependents() {
			p := make([]string, len(path))
			copy(p, path)
			victims = append(victims, p)
		}
	})
	for _, path := range victims {
		n := s.root.lookup(path)
		n.entry = nil
		s.stats.entries.Add(-1)
		s.root.prune(path)
	}
	if len(victims) > 0 {
		s.logger.Debug().Int("removed", len(victims)).Msg("sweep completed")
	}
	return len(victims)
}

// Walk visits every entry in the index depth-first, children in insertion
// order, reporting each entry's normalized key path. The path slice is
// reused between visits; callers that retain it must copy.
func (s *Store) Walk(visit func(path []string, e *Entry)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.root.walk(nil, func(path []string, n *node) {
		if n.entry != nil {
			visit(path, n.entry)
		}
	})
}

// Len returns the number of entries in the index.
func (s *Store) Len() int {
	return int(s.stats.entries.Load())
}
