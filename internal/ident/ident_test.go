package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLengthAndAlphabet(t *testing.T) {
	id := New()
	require.Len(t, id, 12)
	for _, r := range id {
		require.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := New()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
