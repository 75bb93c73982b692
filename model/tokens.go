package model

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenCounter lazily loads a BPE encoding. The encoding may need to be
// fetched on first use, so it is never loaded unless truncation is enabled.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

func (c *TokenCounter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(defaultEncoding)
	})
	return c.enc, c.err
}

func (c *TokenCounter) Count(text string) (int, error) {
	enc, err := c.encoding()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Truncate returns text cut to at most max tokens, along with the
// original token count.
func (c *TokenCounter) Truncate(text string, max int) (string, int, error) {
	enc, err := c.encoding()
	if err != nil {
		return "", 0, err
	}
	tokens := enc.Encode(text, nil, nil)
	if max <= 0 || len(tokens) <= max {
		return text, len(tokens), nil
	}
	// A token boundary can fall inside a multi-byte rune.
	return strings.ToValidUTF8(enc.Decode(tokens[:max]), ""), len(tokens), nil
}
