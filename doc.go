// Package colada implements a client-side cache for asynchronous query
// results keyed by hierarchical keys.
//
// The cache stores one entry per key, tracks the freshness of each result,
// deduplicates concurrent fetches per entry, and can serialize its full
// state for handoff to another process (for example, server to client).
// Key features:
//   - Hierarchical keys: invalidating a key reaches every entry nested
//     under it without a full scan
//   - At most one in-flight fetch per entry; concurrent Refresh callers
//     await the same operation
//   - Token-based supersession: a superseded fetch runs to completion but
//     its result is silently discarded
//   - Clock-relative snapshots: only elapsed durations cross the process
//     boundary, so hydration is correct across unsynchronized clocks
//
// Entry lifetime is driven by dependency ref-counting. The cache never
// evicts on size or age; the owning orchestration layer registers and
// releases dependents and sweeps dependent-free entries when it chooses.
package colada
