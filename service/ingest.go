package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"neuralsearch/queue"
	"neuralsearch/store"
	"neuralsearch/types"

	"github.com/google/uuid"
)

// IngestService persists uploaded documents and schedules their embedding.
type IngestService struct {
	store  store.DocumentStorer
	jobs   queue.Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

func NewIngestService(s store.DocumentStorer, jobs queue.Enqueuer, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		store:  s,
		jobs:   jobs,
		logger: logger.With("component", "ingest"),
		now:    time.Now,
	}
}

// Upload validates data as UTF-8 text, stores it and enqueues an
// embedding job. Blank text is stored too; the worker leaves it unsearchable. It returns as soon as the job is queued; the returned
// document has no embedding yet.
func (s *IngestService) Upload(ctx context.Context, filename string, data []byte) (*types.Document, error) {
	if !utf8.Valid(data) {
		return nil, types.NewValidationError("file", "file must be UTF-8 encoded text")
	}
	content := string(data)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate document id: %w", err)
	}
	doc := &types.Document{
		ID:        id,
		Filename:  filename,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	handle, err := s.jobs.Enqueue(ctx, queue.Job{DocumentID: doc.ID})
	if err != nil {
		// The row is durable; EnqueuePending will pick it up later.
		s.logger.Error("document stored but not queued", "document_id", doc.ID, "error", err)
		return nil, types.NewStoreError("enqueue embedding job", err)
	}

	s.logger.Info("document ingested", "document_id", doc.ID, "filename", filename, "bytes", len(data), "job_id", handle.ID)
	return doc, nil
}

// EnqueuePending queues a job for every document still lacking an
// embedding. Duplicate jobs are harmless because embedding is idempotent.
func (s *IngestService) EnqueuePending(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := s.jobs.Enqueue(ctx, queue.Job{DocumentID: id}); err != nil {
			return i, types.NewStoreError("enqueue embedding job", err)
		}
	}
	if len(ids) > 0 {
		s.logger.Info("re-enqueued pending documents", "count", len(ids))
	}
	return len(ids), nil
}
