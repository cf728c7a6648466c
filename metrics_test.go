package colada

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	s, clock := testStore(t)
	e := mustEnsure(t, s, QueryConfig{
		Key:       Key{"todos"},
		StaleTime: time.Hour,
		Query:     func(context.Context) (any, error) { return "v", nil },
	})

	_, err := e.Refetch(context.Background())
	require.NoError(t, err)
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Fetches)
	assert.Equal(t, int64(1), stats.FreshHits)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Zero(t, stats.Failures)
	assert.Zero(t, stats.Discards)
}

func TestStoreCollector(t *testing.T) {
	s, _ := testStore(t)
	e := mustEnsure(t, s, QueryConfig{
		Key:   Key{"todos"},
		Query: func(context.Context) (any, error) { return "v", nil },
	})
	_, err := e.Refetch(context.Background())
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewStoreCollector(s)))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64, len(families))
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			byName[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			byName[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	assert.Equal(t, 1.0, byName["colada_fetches_total"])
	assert.Equal(t, 1.0, byName["colada_entries"])
	assert.Contains(t, byName, "colada_refresh_dedups_total")
	assert.Contains(t, byName, "colada_refresh_fresh_hits_total")
	assert.Contains(t, byName, "colada_fetch_failures_total")
	assert.Contains(t, byName, "colada_superseded_discards_total")
	assert.Contains(t, byName, "colada_hydrated_entries_total")
}
