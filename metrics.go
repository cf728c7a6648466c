package colada

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// storeStats are the store's internal counters. Counters only ever grow
// except entries, which tracks the live entry count.
type storeStats struct {
	fetches   atomic.Int64
	dedups    atomic.Int64
	freshHits atomic.Int64
	failures  atomic.Int64
	discards  atomic.Int64
	hydrated  atomic.Int64
	entries   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the store's counters.
type StatsSnapshot struct {
	// Fetches is the number of fetch operations started.
	Fetches int64

	// Dedups is the number of Refresh calls that awaited an already
	// in-flight fetch instead of starting one.
	Dedups int64

	// FreshHits is the number of Refresh calls answered from fresh data
	// with no fetch at all.
	FreshHits int64

	// Failures is the number of fetches that settled with an error and
	// committed it to an entry.
	Failures int64

	// Discards is the number of superseded fetches whose results were
	// silently dropped.
	Discards int64

	// Hydrated is the number of entries created or overwritten by Hydrate.
	Hydrated int64

	// Entries is the current number of entries in the index.
	Entries int64
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() StatsSnapshot {
	return StatsSnapshot{
		Fetches:   s.stats.fetches.Load(),
		Dedups:    s.stats.dedups.Load(),
		FreshHits: s.stats.freshHits.Load(),
		Failures:  s.stats.failures.Load(),
		Discards:  s.stats.discards.Load(),
		Hydrated:  s.stats.hydrated.Load(),
		Entries:   s.stats.entries.Load(),
	}
}

// StoreCollector exposes a Store's counters as Prometheus metrics. Register
// it with a prometheus.Registerer; one collector serves one store.
type StoreCollector struct {
	store *Store

	fetches   *prometheus.Desc
	dedups    *prometheus.Desc
	freshHits *prometheus.Desc
	failures  *prometheus.Desc
	discards  *prometheus.Desc
	hydrated  *prometheus.Desc
	entries   *prometheus.Desc
}

// NewStoreCollector creates a collector reading from store.
func NewStoreCollector(store *Store) *StoreCollector {
	return &StoreCollector{
		store: store,

		fetches: prometheus.NewDesc(
			"colada_fetches_total",
			"Total number of fetch operations started",
			nil, nil,
		),
		dedups: prometheus.NewDesc(
			"colada_refresh_dedups_total",
			"Total number of refreshes deduplicated onto an in-flight fetch",
			nil, nil,
		),
		freshHits: prometheus.NewDesc(
			"colada_refresh_fresh_hits_total",
			"Total number of refreshes answered from fresh data",
			nil, nil,
		),
		failures: prometheus.NewDesc(
			"colada_fetch_failures_total",
			"Total number of fetches that committed an error",
			nil, nil,
		),
		discards: prometheus.NewDesc(
			"colada_superseded_discards_total",
			"Total number of superseded fetch results discarded",
			nil, nil,
		),
		hydrated: prometheus.NewDesc(
			"colada_hydrated_entries_total",
			"Total number of entries written by hydration",
			nil, nil,
		),
		entries: prometheus.NewDesc(
			"colada_entries",
			"Current number of entries in the cache index",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fetches
	ch <- c.dedups
	ch <- c.freshHits
	ch <- c.failures
	ch <- c.discards
	ch <- c.hydrated
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue, float64(stats.Fetches))
	ch <- prometheus.MustNewConstMetric(c.dedups, prometheus.CounterValue, float64(stats.Dedups))
	ch <- prometheus.MustNewConstMetric(c.freshHits, prometheus.CounterValue, float64(stats.FreshHits))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures))
	ch <- prometheus.MustNewConstMetric(c.discards, prometheus.CounterValue, float64(stats.Discards))
	ch <- prometheus.MustNewConstMetric(c.hydrated, prometheus.CounterValue, float64(stats.Hydrated))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Entries))
}
