package model

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashBackend is a deterministic local model using signed feature hashing
// over word unigrams, word bigrams and character trigrams. Vectors are
// L2-normalized, so near-identical texts land close together.
type HashBackend struct {
	dimensions int
}

func NewHashBackend(dimensions int) *HashBackend {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashBackend{dimensions: dimensions}
}

// HashLoader adapts NewHashBackend to a Loader.
func HashLoader(dimensions int) Loader {
	return func(context.Context) (Backend, error) {
		return NewHashBackend(dimensions), nil
	}
}

func (h *HashBackend) Name() string {
	return "hash"
}

func (h *HashBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.encode(text)
	}
	return out, nil
}

func (h *HashBackend) encode(text string) []float32 {
	vec := make([]float32, h.dimensions)
	words := tokenize(text)

	for i, w := range words {
		h.add(vec, "w:"+w, 1.0)
		if i > 0 {
			h.add(vec, "b:"+words[i-1]+" "+w, 0.5)
		}
		padded := []rune(" " + w + " ")
		for j := 0; j+3 <= len(padded); j++ {
			h.add(vec, "c:"+string(padded[j:j+3]), 0.25)
		}
	}
	if len(words) == 0 {
		// Punctuation-only input still gets a stable vector.
		for _, r := range strings.TrimSpace(text) {
			h.add(vec, "r:"+string(r), 1.0)
		}
	}
	return normalize32(vec)
}

func (h *HashBackend) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
