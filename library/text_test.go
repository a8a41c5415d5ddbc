package library

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abcdef", 0))

	got := Truncate("aÉbcdefgh", 5)
	assert.Equal(t, "aÉ...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Émile Zola", Truncate("Émile Zola", 10))
	assert.Equal(t, "東京...", Truncate("東京の夜と朝", 5))
}
