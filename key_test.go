package colada

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalize(t *testing.T) {
	t.Run("StringSegments", func(t *testing.T) {
		path, err := Key{"todos", "detail"}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []string{"todos", "detail"}, path)
	})

	t.Run("StructuredSegments", func(t *testing.T) {
		path, err := Key{"todos", map[string]any{"page": 2, "filter": "open"}}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []string{"todos", `{"filter":"open","page":2}`}, path)
	})

	t.Run("MapKeyOrderIsIrrelevant", func(t *testing.T) {
		// encoding/json sorts map keys, so equivalent maps reduce identically.
		a, err := Key{map[string]int{"a": 1, "b": 2}}.Normalize()
		require.NoError(t, err)
		b, err := Key{map[string]int{"b": 2, "a": 1}}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("NumericSegments", func(t *testing.T) {
		path, err := Key{"todos", 42}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []string{"todos", "42"}, path)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := Key{}.Normalize()
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("UnencodableSegment", func(t *testing.T) {
		_, err := Key{"todos", make(chan int)}.Normalize()
		assert.Error(t, err)
	})
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "[todos 42]", Key{"todos", 42}.String())
}
