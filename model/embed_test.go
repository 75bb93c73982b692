package model

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHashEmbedder() *Embedder {
	return NewEmbedder(Config{Dimensions: DefaultDimensions, Lanes: 2}, HashLoader(DefaultDimensions), nil)
}

func TestEmbedDimensionsAndDeterminism(t *testing.T) {
	e := newHashEmbedder()
	ctx := context.Background()

	texts := []string{
		"This is a test sentence.",
		"hello world",
		"ünïcödé text with ümlauts",
		"!!!",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			a, err := e.Embed(ctx, text)
			require.NoError(t, err)
			b, err := e.Embed(ctx, text)
			require.NoError(t, err)

			assert.Len(t, a, DefaultDimensions)
			assert.Equal(t, a, b)
			for _, x := range a {
				assert.False(t, math.IsNaN(float64(x)) || math.IsInf(float64(x), 0))
			}
		})
	}
}

func TestEmbedBlankInput(t *testing.T) {
	e := newHashEmbedder()
	for _, text := range []string{"", "   ", "   \t\n  "} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.NotNil(t, vec)
		assert.Empty(t, vec)
	}
}

func TestEmbedSimilarTextsAreCloser(t *testing.T) {
	e := newHashEmbedder()
	ctx := context.Background()

	query, _ := e.Embed(ctx, "hello")
	near, _ := e.Embed(ctx, "hello world")
	far, _ := e.Embed(ctx, "quarterly revenue forecast for the fiscal year")

	assert.Less(t, l2(query, near), l2(query, far))
	assert.Zero(t, l2(near, near))
}

type countingBackend struct {
	dims int
	err  error
}

func (b *countingBackend) Name() string { return "fake" }

func (b *countingBackend) Encode(_ context.Context, texts []string) ([][]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, b.dims)
	}
	return out, nil
}

func TestBackendLoadedOnce(t *testing.T) {
	var loads atomic.Int32
	loader := func(context.Context) (Backend, error) {
		loads.Add(1)
		return &countingBackend{dims: 4}, nil
	}
	e := NewEmbedder(Config{Dimensions: 4, Lanes: 4}, loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), "text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, loads.Load())
}

func TestBlankInputDoesNotLoadBackend(t *testing.T) {
	loader := func(context.Context) (Backend, error) {
		t.Fatal("backend must not load for blank input")
		return nil, nil
	}
	e := NewEmbedder(Config{Dimensions: 4}, loader, nil)
	vec, err := e.Embed(context.Background(), " ")
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	e := NewEmbedder(Config{Dimensions: 8}, func(context.Context) (Backend, error) {
		return &countingBackend{dims: 4}, nil
	}, nil)

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 8")
}

func TestEmbedLoadError(t *testing.T) {
	boom := errors.New("weights missing")
	e := NewEmbedder(Config{Dimensions: 4}, func(context.Context) (Backend, error) {
		return nil, boom
	}, nil)

	_, err := e.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, e.Warmup(context.Background()), boom)
}

func TestEmbedRetriesLoadAfterFailure(t *testing.T) {
	var loads atomic.Int32
	e := NewEmbedder(Config{Dimensions: 4}, func(context.Context) (Backend, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("ollama not up yet")
		}
		return &countingBackend{dims: 4}, nil
	}, nil)

	err := e.Warmup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	_, err = e.Embed(context.Background(), "hello again")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads.Load())
}

func TestEmbedLoadIgnoresCallerCancellation(t *testing.T) {
	var loads atomic.Int32
	e := NewEmbedder(Config{Dimensions: 4}, func(ctx context.Context) (Backend, error) {
		loads.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &countingBackend{dims: 4}, nil
	}, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = e.Embed(cancelled, "hello")

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.EqualValues(t, 1, loads.Load())
}

func TestCheckVectorRejectsNonFinite(t *testing.T) {
	assert.Error(t, checkVector([]float32{1, float32(math.NaN())}, 2))
	assert.Error(t, checkVector([]float32{float32(math.Inf(1)), 0}, 2))
	assert.NoError(t, checkVector([]float32{0, 1}, 2))
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
