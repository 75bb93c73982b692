// Package bootstrap builds the store, queue, embedder and services
// described by a config. The API server and the standalone worker share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neuralsearch/config"
	"neuralsearch/model"
	"neuralsearch/queue"
	"neuralsearch/service"
	"neuralsearch/store"
	workerservice "neuralsearch/worker/service"
)

const memoryQueueCapacity = 4096

type Components struct {
	Store     store.DocumentStorer
	Queue     queue.Queue
	Embedder  *model.Embedder
	Ingest    *service.IngestService
	Search    *service.SearchService
	Documents *service.DocumentService
	Worker    *service.EmbeddingWorker
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dims := cfg.Embedding.Dimensions
	opts := queue.Options{
		MaxAttempts:       cfg.Queue.MaxAttempts,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		RetryBackoff:      cfg.Queue.RetryBackoff,
	}

	c := &Components{}

	switch cfg.Database.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL, dims)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		c.Store = pg
		if err := pg.Init(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
		if cfg.Queue.Driver == "postgres" {
			pq := queue.NewPostgresQueue(pg.Pool(), opts)
			if err := pq.Init(ctx); err != nil {
				c.Close()
				return nil, fmt.Errorf("create job table: %w", err)
			}
			c.Queue = pq
		}
	case "sqlite":
		lite, err := store.NewSQLiteStore(cfg.Database.SQLitePath, dims)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		c.Store = lite
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if c.Queue == nil {
		if cfg.Queue.Driver != "memory" {
			c.Close()
			return nil, fmt.Errorf("queue driver %q is not available with database driver %q", cfg.Queue.Driver, cfg.Database.Driver)
		}
		c.Queue = queue.NewMemoryQueue(memoryQueueCapacity, opts)
	}

	loader, err := embeddingLoader(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Embedder = model.NewEmbedder(model.Config{
		Dimensions: dims,
		Lanes:      cfg.Embedding.Lanes,
	}, loader, logger.With("component", "embedder"))

	c.Ingest = service.NewIngestService(c.Store, c.Queue, logger)
	c.Search = service.NewSearchService(c.Store, c.Embedder, cfg.Search.DefaultK, cfg.Search.MaxK, logger)
	c.Documents = service.NewDocumentService(c.Store)
	c.Worker = service.NewEmbeddingWorker(c.Store, c.Embedder, logger)

	return c, nil
}

func embeddingLoader(cfg *config.Config, logger *slog.Logger) (model.Loader, error) {
	switch cfg.Embedding.Provider {
	case "hash":
		return model.HashLoader(cfg.Embedding.Dimensions), nil
	case "ollama":
		return model.OllamaLoader(model.OllamaConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			MaxTokens: cfg.Embedding.MaxTokens,
		}, cfg.Embedding.Dimensions, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// Runner returns a job runner consuming this process's queue.
func (c *Components) Runner(cfg *config.Config, logger *slog.Logger) *workerservice.Service {
	return workerservice.New(c.Queue, c.Worker, workerservice.Config{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		RateLimit:    cfg.Worker.RateLimit,
	}, logger)
}

// Close releases the queue before the store it may share a pool with.
func (c *Components) Close() error {
	var errs []error
	if c.Queue != nil {
		errs = append(errs, c.Queue.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
