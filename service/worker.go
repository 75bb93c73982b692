package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neuralsearch/model"
	"neuralsearch/queue"
	"neuralsearch/store"
	"neuralsearch/types"
)

// EmbeddingWorker computes and persists the embedding for one job.
type EmbeddingWorker struct {
	store    store.DocumentStorer
	embedder model.EmbedderInterface
	logger   *slog.Logger
}

func NewEmbeddingWorker(s store.DocumentStorer, e model.EmbedderInterface, logger *slog.Logger) *EmbeddingWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingWorker{
		store:    s,
		embedder: e,
		logger:   logger.With("component", "embedding_worker"),
	}
}

// Process is safe to run more than once for the same document.
//
// A missing document is a no-op. Embedding failures wrap
// types.ErrEmbeddingFailed and must not be retried; store failures and an
// unavailable model are returned as-is for the queue to retry.
func (w *EmbeddingWorker) Process(ctx context.Context, job queue.Job) error {
	log := w.logger.With("job_id", job.ID, "document_id", job.DocumentID, "attempt", job.Attempt)

	doc, err := w.store.GetDocumentByID(ctx, job.DocumentID)
	if errors.Is(err, types.ErrNotFound) {
		log.Info("document not found, skipping processing")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("processing file", "filename", doc.Filename)
	vec, err := w.embedder.Embed(ctx, doc.Content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, model.ErrModelUnavailable) {
			// Retried by the queue once the model comes back.
			return err
		}
		return fmt.Errorf("%w: %v", types.ErrEmbeddingFailed, err)
	}
	if len(vec) == 0 {
		log.Warn("document has no embeddable text, leaving it unsearchable")
		return nil
	}

	err = w.store.SetEmbedding(ctx, doc.ID, vec)
	if errors.Is(err, types.ErrNotFound) {
		log.Info("document removed while embedding, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("saved embedding", "vector_len", len(vec))
	return nil
}
