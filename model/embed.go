package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// ErrModelUnavailable means the backend could not be loaded. It is
// transient: the next Embed call tries to load again.
var ErrModelUnavailable = errors.New("embedding model unavailable")

const loadTimeout = time.Minute

// EmbedderInterface maps text to a fixed-length vector. Blank text maps
// to an empty, non-nil vector which callers must neither persist nor query.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Backend is the underlying model. An Embedder keeps the first one that loads.
type Backend interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Loader builds a Backend. Expensive work (weights, connections) belongs here.
type Loader func(ctx context.Context) (Backend, error)

type Config struct {
	Dimensions int
	// Lanes bounds concurrent Encode calls so CPU-bound work cannot starve
	// request handling.
	Lanes int
}

// Embedder is the process-wide embedding service. Construct one and pass
// it to every component that needs embeddings.
type Embedder struct {
	dimensions int
	load       Loader
	lanes      *semaphore.Weighted
	logger     *slog.Logger

	mu      sync.Mutex
	backend Backend
}

func NewEmbedder(cfg Config, load Loader, logger *slog.Logger) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Lanes <= 0 {
		cfg.Lanes = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		dimensions: cfg.Dimensions,
		load:       load,
		lanes:      semaphore.NewWeighted(int64(cfg.Lanes)),
		logger:     logger,
	}
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Warmup loads the backend eagerly so the first request does not pay for it.
func (e *Embedder) Warmup(ctx context.Context) error {
	_, err := e.backendFor(ctx)
	return err
}

// backendFor loads the backend on first use. Only a successful load is
// kept; a failed one is attempted again by the next caller.
func (e *Embedder) backendFor(ctx context.Context) (Backend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		return e.backend, nil
	}

	// The loaded backend outlives the request that triggered the load.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()
	backend, err := e.load(loadCtx)
	if err != nil {
		e.logger.Error("embedding model failed to load", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	e.backend = backend
	e.logger.Info("embedding model loaded", "model", backend.Name(), "dimensions", e.dimensions)
	return backend, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}

	backend, err := e.backendFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding model: %w", err)
	}

	if err := e.lanes.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.lanes.Release(1)

	vectors, err := backend.Encode(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", backend.Name(), err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%s returned %d vectors for 1 input", backend.Name(), len(vectors))
	}
	vec := vectors[0]
	if err := checkVector(vec, e.dimensions); err != nil {
		return nil, fmt.Errorf("%s: %w", backend.Name(), err)
	}
	return vec, nil
}

func checkVector(vec []float32, dimensions int) error {
	if len(vec) != dimensions {
		return fmt.Errorf("vector has %d dimensions, want %d", len(vec), dimensions)
	}
	for i, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}

func normalize32(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, x := range vec {
		vec[i] = float32(float64(x) / norm)
	}
	return vec
}
