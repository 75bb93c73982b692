package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neuralsearch/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DocumentStorer is the durable record of uploaded documents. Every
// method is a single atomic operation against the store.
type DocumentStorer interface {
	InsertDocument(context.Context, *types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	ListDocuments(context.Context) ([]types.Document, error)
	// SetEmbedding overwrites the embedding of an existing document.
	SetEmbedding(context.Context, uuid.UUID, []float32) error
	// FindNearest returns up to k embedded documents ordered by ascending
	// L2 distance to vec, ties broken by insertion order.
	FindNearest(ctx context.Context, vec []float32, k int) ([]types.Document, error)
	// ListPending returns ids of documents still waiting for an embedding.
	ListPending(ctx context.Context, limit int) ([]uuid.UUID, error)
	Close() error
}

type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
	logger     *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, dimensions int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:       pool,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "postgres_store"),
	}, nil
}

// Pool exposes the connection pool so the job queue can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) InsertDocument(ctx context.Context, doc *types.Document) error {
	query := `INSERT INTO documents (id, filename, content, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := p.pool.Exec(ctx, query, doc.ID, doc.Filename, doc.Content, doc.CreatedAt)
	return types.NewStoreError("insert document", err)
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		"SELECT id, filename, content, created_at, embedding FROM documents WHERE id = $1", docID)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, types.NewStoreError("get document", err)
	}
	return doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id, filename, content, created_at, embedding FROM documents ORDER BY created_at, id")
	if err != nil {
		return nil, types.NewStoreError("list documents", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, types.NewStoreError("list documents", err)
	}
	return docs, nil
}

func (p *PostgresStore) SetEmbedding(ctx context.Context, docID uuid.UUID, vec []float32) error {
	if len(vec) != p.dimensions {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(vec), p.dimensions)
	}

	tag, err := p.pool.Exec(ctx,
		"UPDATE documents SET embedding = $2 WHERE id = $1", docID, pgvector.NewVector(vec))
	if err != nil {
		return types.NewStoreError("set embedding", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) FindNearest(ctx context.Context, queryVec []float32, k int) ([]types.Document, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if k <= 0 {
		return []types.Document{}, nil
	}

	// The inner ORDER BY must be the distance alone for the HNSW index to
	// serve it; ties are broken on the k rows it returns.
	query := `
		SELECT id, filename, content, created_at, embedding
		FROM (
			SELECT id, filename, content, created_at, embedding, embedding <-> $1 AS distance
			FROM documents
			WHERE embedding IS NOT NULL
			ORDER BY embedding <-> $1
			LIMIT $2
		) nearest
		ORDER BY distance, created_at, id
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, types.NewStoreError("find nearest", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, types.NewStoreError("find nearest", err)
	}
	p.logger.Debug("nearest documents found", "k", k, "count", len(docs))
	return docs, nil
}

func (p *PostgresStore) ListPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id FROM documents WHERE embedding IS NULL ORDER BY created_at, id LIMIT $1", limit)
	if err != nil {
		return nil, types.NewStoreError("list pending", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, types.NewStoreError("list pending", err)
	}
	return ids, nil
}

func scanDocument(row pgx.Row) (*types.Document, error) {
	var (
		doc       types.Document
		embedding *pgvector.Vector
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.CreatedAt, &embedding); err != nil {
		return nil, err
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return &doc, nil
}

func collectDocuments(rows pgx.Rows) ([]types.Document, error) {
	docs := []types.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		embedding vector(%d)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at, id);

	-- L2 index for nearest-neighbour search
	CREATE INDEX IF NOT EXISTS idx_documents_embedding ON documents USING hnsw (embedding vector_l2_ops);
	`, p.dimensions)

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("Postgres connection pool is closed")
	}
	return nil
}
