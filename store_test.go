package colada

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureEntry(t *testing.T) {
	t.Run("CreateThenReuse", func(t *testing.T) {
		s, _ := testStore(t)
		a, err := s.EnsureEntry(QueryConfig{Key: Key{"todos"}})
		require.NoError(t, err)
		b, err := s.EnsureEntry(QueryConfig{Key: Key{"todos"}})
		require.NoError(t, err)
		assert.Same(t, a, b)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("FirstConfigWins", func(t *testing.T) {
		s, _ := testStore(t)
		var firstCalls, secondCalls atomic.Int64
		e, err := s.EnsureEntry(QueryConfig{
			Key:   Key{"todos"},
			Query: func(context.Context) (any, error) { return firstCalls.Add(1), nil },
		})
		require.NoError(t, err)

		_, err = s.EnsureEntry(QueryConfig{
			Key:         Key{"todos"},
			Query:       func(context.Context) (any, error) { return secondCalls.Add(1), nil },
			InitialData: func() any { return "late seed" },
		})
		require.NoError(t, err)

		_, err = e.Refetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), firstCalls.Load())
		assert.Zero(t, secondCalls.Load())

		_, ok := e.Data()
		assert.True(t, ok)
		got, _ := e.Data()
		assert.NotEqual(t, "late seed", got, "late InitialData ignored")
	})

	t.Run("EquivalentStructuredKeys", func(t *testing.T) {
		s, _ := testStore(t)
		a, err := s.EnsureEntry(QueryConfig{Key: Key{"todos", map[string]int{"page": 1, "size": 10}}})
		require.NoError(t, err)
		b, err := s.EnsureEntry(QueryConfig{Key: Key{"todos", map[string]int{"size": 10, "page": 1}}})
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		s, _ := testStore(t)
		_, err := s.EnsureEntry(QueryConfig{})
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("ConfigAttachesToHydratedEntry", func(t *testing.T) {
		// An entry can exist before its configuration is known; the first
		// EnsureEntry attaches it, and InitialData does not clobber data the
		// entry already holds.
		s, _ := testStore(t)
		src, _ := testStore(t)
		se := mustEnsure(t, src, QueryConfig{
			Key:   Key{"todos"},
			Query: func(context.Context) (any, error) { return "remote", nil },
		})
		_, err := se.Refetch(context.Background())
		require.NoError(t, err)
		snap, err := src.Serialize()
		require.NoError(t, err)
		require.NoError(t, s.Hydrate(snap))

		e := mustEnsure(t, s, QueryConfig{
			Key:         Key{"todos"},
			InitialData: func() any { return "seed" },
			Query:       func(context.Context) (any, error) { return "fetched", nil },
		})
		got, ok := e.Data()
		assert.True(t, ok)
		assert.JSONEq(t, `"remote"`, string(got.(json.RawMessage)))
	})
}

func TestInvalidateEntrySubtree(t *testing.T) {
	s, _ := testStore(t)
	fetch := func(v string) QueryFunc {
		return func(context.Context) (any, error) { return v, nil }
	}
	list := mustEnsure(t, s, QueryConfig{Key: Key{"todos"}, StaleTime: time.Hour, Query: fetch("list")})
	detail := mustEnsure(t, s, QueryConfig{Key: Key{"todos", 1}, StaleTime: time.Hour, Query: fetch("detail")})
	other := mustEnsure(t, s, QueryConfig{Key: Key{"users"}, StaleTime: time.Hour, Query: fetch("other")})

	for _, e := range []*Entry{list, detail, other} {
		_, err := e.Refetch(context.Background())
		require.NoError(t, err)
		require.False(t, e.IsStale())
	}

	require.NoError(t, s.InvalidateEntry(Key{"todos"}, false))

	assert.True(t, list.IsStale(), "invalidated key is stale")
	assert.True(t, detail.IsStale(), "descendant is stale")
	assert.False(t, other.IsStale(), "sibling untouched")

	t.Run("MissingKey", func(t *testing.T) {
		err := s.InvalidateEntry(Key{"nope"}, false)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestSetEntryData(t *testing.T) {
	s, _ := testStore(t)
	mustEnsure(t, s, QueryConfig{Key: Key{"todos"}})
	mustEnsure(t, s, QueryConfig{Key: Key{"todos", 1}})

	require.NoError(t, s.SetEntryData(Key{"todos"}, "value"))

	e, _ := s.Lookup(Key{"todos"})
	got, ok := e.Data()
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	// No descendant propagation.
	child, _ := s.Lookup(Key{"todos", 1})
	_, ok = child.Data()
	assert.False(t, ok)

	t.Run("Missing", func(t *testing.T) {
		assert.ErrorIs(t, s.SetEntryData(Key{"nope"}, "v"), ErrEntryNotFound)
		assert.ErrorIs(t, s.UpdateEntryData(Key{"nope"}, func(old any) any { return old }), ErrEntryNotFound)
	})

	t.Run("Updater", func(t *testing.T) {
		require.NoError(t, s.UpdateEntryData(Key{"todos"}, func(old any) any {
			return old.(string) + "!"
		}))
		got, _ := e.Data()
		assert.Equal(t, "value!", got)
	})
}

func TestPrefetch(t *testing.T) {
	t.Run("ExistingEntry", func(t *testing.T) {
		s, _ := testStore(t)
		var calls atomic.Int64
		mustEnsure(t, s, QueryConfig{
			Key:   Key{"todos"},
			Query: func(context.Context) (any, error) { return calls.Add(1), nil },
		})

		s.Prefetch(context.Background(), Key{"todos"})
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	})

	t.Run("MissingEntryIsSilent", func(t *testing.T) {
		s, _ := testStore(t)
		s.Prefetch(context.Background(), Key{"nope"})
		assert.Zero(t, s.Len())
	})
}

func TestRemove(t *testing.T) {
	s, _ := testStore(t)
	e := mustEnsure(t, s, QueryConfig{Key: Key{"todos", 1, "comments"}})
	e.AddDependent("owner")

	assert.False(t, s.Remove(Key{"todos", 1, "comments"}), "refused while dependents remain")
	assert.Equal(t, 1, s.Len())

	e.RemoveDependent("owner")
	assert.True(t, s.Remove(Key{"todos", 1, "comments"}))
	assert.Equal(t, 0, s.Len())

	_, ok := s.Lookup(Key{"todos", 1, "comments"})
	assert.False(t, ok)

	// Empty intermediate chain pruned as well.
	s.mu.RLock()
	assert.Nil(t, s.root.lookup([]string{"todos"}))
	s.mu.RUnlock()

	assert.False(t, s.Remove(Key{"todos", 1, "comments"}), "idempotent on missing entry")
}

func TestSweep(t *testing.T) {
	s, _ := testStore(t)
	held := mustEnsure(t, s, QueryConfig{Key: Key{"a"}})
	held.AddDependent("owner")
	mustEnsure(t, s, QueryConfig{Key: Key{"a", "b"}})
	mustEnsure(t, s, QueryConfig{Key: Key{"c"}})

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, ok := s.Lookup(Key{"a"})
	assert.True(t, ok, "held entry survives")
	_, ok = s.Lookup(Key{"a", "b"})
	assert.False(t, ok)
	_, ok = s.Lookup(Key{"c"})
	assert.False(t, ok)

	assert.Zero(t, s.Sweep(), "second sweep finds nothing")
}

func TestWalk(t *testing.T) {
	s, _ := testStore(t)
	mustEnsure(t, s, QueryConfig{Key: Key{"todos"}})
	mustEnsure(t, s, QueryConfig{Key: Key{"todos", 1}})
	mustEnsure(t, s, QueryConfig{Key: Key{"users"}})

	var keys [][]string
	s.Walk(func(path []string, _ *Entry) {
		p := make([]string, len(path))
		copy(p, path)
		keys = append(keys, p)
	})

	assert.Equal(t, [][]string{
		{"todos"},
		{"todos", "1"},
		{"users"},
	}, keys)
}
