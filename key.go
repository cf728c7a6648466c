package colada

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a query's cached slot as an ordered sequence of segments.
// Keys are hierarchical: a key whose segments are a prefix of another key's
// segments is an ancestor of it, and prefix-addressed operations (such as
// invalidation) reach every descendant.
//
// Segments may be strings or any JSON-serializable value. Structured
// segments are reduced to a canonical string form for indexing, so two keys
// are equal iff their reduced segment sequences are equal element-wise:
//
//	colada.Key{"todos", map[string]any{"page": 1}}
//	colada.Key{"todos", struct{ Page int `json:"page"` }{1}}
//
// both index the same slot.
type Key []any

// Normalize reduces each segment to its stable string form. String segments
// pass through unchanged; all other values are encoded as canonical JSON
// (encoding/json sorts map keys, so equivalent maps reduce identically).
func (k Key) Normalize() ([]string, error) {
	if len(k) == 0 {
		return nil, ErrEmptyKey
	}
	path := make([]string, len(k))
	for i, seg := range k {
		s, err := normalizeSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("normalize key segment %d: %w", i, err)
		}
		path[i] = s
	}
	return path, nil
}

// String renders the key in its reduced form for logs and error messages.
// Segments that fail to normalize are rendered with %v.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, seg := range k {
		s, err := normalizeSegment(seg)
		if err != nil {
			s = fmt.Sprintf("%v", seg)
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func normalizeSegment(seg any) (string, error) {
	if s, ok := seg.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(seg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
