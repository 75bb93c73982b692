package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireEncoding(t *testing.T) *TokenCounter {
	t.Helper()
	c := NewTokenCounter()
	if _, err := c.Count("hello"); err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return c
}

func TestTruncate(t *testing.T) {
	c := requireEncoding(t)

	text, n, err := c.Truncate("one two three four five", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "one two", text)

	text, _, err = c.Truncate("short", 0)
	require.NoError(t, err)
	assert.Equal(t, "short", text)

	text, _, err = c.Truncate("short", 10)
	require.NoError(t, err)
	assert.Equal(t, "short", text)
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	c := requireEncoding(t)

	input := strings.Repeat("日本語のテキスト🙂", 10)
	for max := 1; max <= 8; max++ {
		text, _, err := c.Truncate(input, max)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(text), "max=%d", max)
		assert.True(t, strings.HasPrefix(input, text), "max=%d", max)
	}
}
