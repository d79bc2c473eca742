package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagLengthAndAlphabet(t *testing.T) {
	tag, err := Tag()
	require.NoError(t, err)
	assert.Len(t, tag, TagLength)

	for _, r := range tag {
		assert.True(t, strings.ContainsRune(Base62Chars, r), "unexpected rune %q", r)
	}
}

func TestTagsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tag, err := Tag()
		require.NoError(t, err)

		_, dup := seen[tag]
		require.False(t, dup, "duplicate tag %s", tag)
		seen[tag] = struct{}{}
	}
}
