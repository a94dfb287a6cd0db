package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	t.Parallel()

	a, b := New(42), New(42)
	for range 100 {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
	assert.NotEqual(t, New(1).Uint64(), New(2).Uint64())
}

func TestDerive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Derive(7, 3), Derive(7, 3))

	seen := make(map[int64]bool)
	for n := range 1000 {
		s := Derive(7, n)
		assert.False(t, seen[s], "stream %d repeats a seed", n)
		seen[s] = true
	}
	assert.NotEqual(t, Derive(7, 0), Derive(8, 0))
}
