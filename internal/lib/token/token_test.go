package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("токен url-safe и без паддинга", func(t *testing.T) {
		tok, err := New(32)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]+$`), tok)
	})

	t.Run("длина растёт с энтропией", func(t *testing.T) {
		short, err := New(16)
		require.NoError(t, err)
		long, err := New(32)
		require.NoError(t, err)
		assert.Greater(t, len(long), len(short))
	})

	t.Run("токены не повторяются", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			tok, err := New(32)
			require.NoError(t, err)
			assert.False(t, seen[tok])
			seen[tok] = true
		}
	})
}
