package colada

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Transfer format: the snapshot is a JSON forest of
//
//	[segment, value-or-null, children-or-null]
//
// tuples, one per index node, nested recursively in insertion order. A
// value is itself a tuple
//
//	[data, error-string-or-null, elapsedMs-or-null]
//
// where elapsedMs is the age of the data on the serializing clock. Only
// relative ages cross the boundary, never absolute instants: hydration
// rebuilds each timestamp as "receiving clock minus elapsed", so staleness
// computed after hydration matches the staleness the data actually had at
// serialization time even when the two clocks disagree by years. A null
// elapsed encodes an entry that never resolved (stale by construction),
// which must not hydrate as age zero.
//
// Entries that hold neither data nor error, and intermediate nodes with no
// entry at all, are emitted with a null value purely to preserve the key
// hierarchy, so prefix invalidation behaves identically after hydration.

// dehydratedValue is the wire form of one entry's state.
type dehydratedValue struct {
	Data    json.RawMessage
	Err     *string
	Elapsed *int64
}

// MarshalJSON encodes the value as the [data, error, elapsedMs] tuple.
func (v *dehydratedValue) MarshalJSON() ([]byte, error) {
	var tuple [3]any
	if len(v.Data) > 0 {
		tuple[0] = v.Data
	}
	if v.Err != nil {
		tuple[1] = *v.Err
	}
	if v.Elapsed != nil {
		tuple[2] = *v.Elapsed
	}
	return json.Marshal(tuple)
}

// UnmarshalJSON decodes the [data, error, elapsedMs] tuple.
func (v *dehydratedValue) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("%w: value tuple has %d elements, want 3", ErrInvalidSnapshot, len(tuple))
	}
	if !isJSONNull(tuple[0]) {
		v.Data = append(json.RawMessage(nil), tuple[0]...)
	}
	if !isJSONNull(tuple[1]) {
		var s string
		if err := json.Unmarshal(tuple[1], &s); err != nil {
			return fmt.Errorf("%w: error field: %v", ErrInvalidSnapshot, err)
		}
		v.Err = &s
	}
	if !isJSONNull(tuple[2]) {
		var ms int64
		if err := json.Unmarshal(tuple[2], &ms); err != nil {
			return fmt.Errorf("%w: elapsed field: %v", ErrInvalidSnapshot, err)
		}
		v.Elapsed = &ms
	}
	return nil
}

// dehydratedNode is the wire form of one index node.
type dehydratedNode struct {
	Segment  string
	Value    *dehydratedValue
	Children []*dehydratedNode
}

// MarshalJSON encodes the node as the [segment, value, children] tuple.
func (n *dehydratedNode) MarshalJSON() ([]byte, error) {
	var tuple [3]any
	tuple[0] = n.Segment
	if n.Value != nil {
		tuple[1] = n.Value
	}
	if len(n.Children) > 0 {
		tuple[2] = n.Children
	}
	return json.Marshal(tuple)
}

// UnmarshalJSON decodes the [segment, value, children] tuple.
func (n *dehydratedNode) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("%w: node tuple has %d elements, want 3", ErrInvalidSnapshot, len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &n.Segment); err != nil {
		return fmt.Errorf("%w: segment field: %v", ErrInvalidSnapshot, err)
	}
	if !isJSONNull(tuple[1]) {
		n.Value = &dehydratedValue{}
		if err := json.Unmarshal(tuple[1], n.Value); err != nil {
			return err
		}
	}
	if !isJSONNull(tuple[2]) {
		if err := json.Unmarshal(tuple[2], &n.Children); err != nil {
			return err
		}
	}
	return nil
}

func isJSONNull(b []byte) bool {
	return len(b) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// Serialize flattens the index to its transferable JSON form. Entry data is
// encoded with encoding/json; data hydrated from a previous snapshot is
// carried as raw bytes, so serialize-hydrate-serialize round-trips are
// byte-identical regardless of the clocks involved.
func (s *Store) Serialize() ([]byte, error) {
	now := s.clock.Now()

	s.mu.RLock()
	forest, err := dehydrateChildren(s.root, now)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return json.Marshal(forest)
}

func dehydrateChildren(n *node, now time.Time) ([]*dehydratedNode, error) {
	if len(n.order) == 0 {
		return nil, nil
	}
	out := make([]*dehydratedNode, 0, len(n.order))
	for _, seg := range n.order {
		c := n.children[seg]
		dn := &dehydratedNode{Segment: seg}
		if c.entry != nil {
			v, err := dehydrateEntry(c.entry, now)
			if err != nil {
				return nil, err
			}
			dn.Value = v
		}
		kids, err := dehydrateChildren(c, now)
		if err != nil {
			return nil, err
		}
		dn.Children = kids
		out = append(out, dn)
	}
	return out, nil
}

// dehydrateEntry snapshots one entry's transferable state. Pure pending
// entries (no data, no error) dehydrate to nil; their node still appears in
// the snapshot for structure. A nil data value is indistinguishable from
// absent data on the wire, so it hydrates as absent.
func dehydrateEntry(e *Entry, now time.Time) (*dehydratedValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasData && e.err == nil {
		return nil, nil
	}
	v := &dehydratedValue{}
	if e.hasData {
		if raw, ok := e.data.(json.RawMessage); ok {
			v.Data = raw
		} else {
			b, err := json.Marshal(e.data)
			if err != nil {
				return nil, fmt.Errorf("serialize entry %v: %w", e.path, err)
			}
			v.Data = b
		}
	}
	if e.err != nil {
		msg := e.err.Error()
		v.Err = &msg
	}
	if !e.when.IsZero() {
		ms := now.Sub(e.when).Milliseconds()
		v.Elapsed = &ms
	}
	return v, nil
}

// Hydrate reconstructs entries from a snapshot produced by Serialize on
// another store, translating each serialized age back into an absolute
// timestamp on this store's clock. Hydrated data is held as raw JSON bytes;
// hydrated errors are rebuilt from their messages. Entries that already
// exist at a snapshot key are overwritten in place (config and dependents
// are kept), everything else is created fresh. Configurations are never
// part of a snapshot; consumers attach them via EnsureEntry afterwards.
func (s *Store) Hydrate(snapshot []byte) error {
	var forest []*dehydratedNode
	if err := json.Unmarshal(snapshot, &forest); err != nil {
		if errors.Is(err, ErrInvalidSnapshot) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	now := s.clock.Now()
	for _, dn := range forest {
		s.rehydrate(dn, nil, now)
	}
	return nil
}

func (s *Store) rehydrate(dn *dehydratedNode, prefix []string, now time.Time) {
	path := make([]string, 0, len(prefix)+1)
	path = append(append(path, prefix...), dn.Segment)

	s.mu.Lock()
	n := s.root.ensure(path)
	var e *Entry
	if dn.Value != nil {
		if n.entry == nil {
			n.entry = newEntry(s, path)
			s.stats.entries.Add(1)
		}
		e = n.entry
	}
	s.mu.Unlock()

	if e != nil {
		applyDehydrated(e, dn.Value, now)
		s.stats.hydrated.Add(1)
	}
	for _, c := range dn.Children {
		s.rehydrate(c, path, now)
	}
}

func applyDehydrated(e *Entry, v *dehydratedValue, now time.Time) {
	e.mu.Lock()
	if len(v.Data) > 0 {
		e.data = append(json.RawMessage(nil), v.Data...)
		e.hasData = true
	}
	switch {
	case v.Err != nil:
		e.err = errors.New(*v.Err)
		e.status = StatusError
	case e.hasData:
		e.err = nil
		e.status = StatusSuccess
	}
	if v.Elapsed != nil {
		e.when = now.Add(-time.Duration(*v.Elapsed) * time.Millisecond)
	} else {
		e.when = time.Time{}
	}
	listeners := e.listenersLocked()
	e.mu.Unlock()
	e.notify(listeners)
}
