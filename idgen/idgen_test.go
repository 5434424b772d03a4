package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/any-mirror/document"
)

func TestNew(t *testing.T) {
	for _, strategy := range []Strategy{"", StrategyRandom, StrategyUUID, StrategyLexId} {
		t.Run(string(strategy), func(t *testing.T) {
			gen, err := New(strategy)
			require.NoError(t, err)
			seen := map[document.Id]struct{}{}
			for i := 0; i < 100; i++ {
				id := gen.NewId()
				assert.True(t, gen.Valid(id), id)
				seen[id] = struct{}{}
			}
			assert.Len(t, seen, 100)
			assert.False(t, gen.Valid(""))
		})
	}
	t.Run("unknown", func(t *testing.T) {
		_, err := New("meteor")
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})
}

func TestRandom(t *testing.T) {
	id := NewRandom().NewId()
	assert.Len(t, string(id), randomLength)
	for _, r := range string(id) {
		assert.Contains(t, randomChars, string(r))
	}
}

func TestUUID_Valid(t *testing.T) {
	gen := NewUUID()
	assert.False(t, gen.Valid("not-a-uuid"))
	assert.True(t, gen.Valid("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}

func TestLexId_Ordered(t *testing.T) {
	gen := NewLexId()
	prev := gen.NewId()
	for i := 0; i < 50; i++ {
		id := gen.NewId()
		assert.Greater(t, string(id), string(prev))
		prev = id
	}
}
