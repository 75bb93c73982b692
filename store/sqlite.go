package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"neuralsearch/types"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at, id);
`

// SQLiteStore keeps documents in a single SQLite file. Nearest-neighbour
// queries are an exact L2 scan over embedded rows, which is fine for
// single-node deployments and tests.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// NewSQLiteStore opens path (":memory:" for a throwaway database) and
// applies the schema.
func NewSQLiteStore(path string, dimensions int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma failed: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema failed: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "sqlite_store"),
	}, nil
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *types.Document) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, filename, content, created_at) VALUES (?, ?, ?, ?)",
		doc.ID.String(), doc.Filename, doc.Content, doc.CreatedAt.UnixNano())
	return types.NewStoreError("insert document", err)
}

func (s *SQLiteStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, filename, content, created_at, embedding FROM documents WHERE id = ?", docID.String())

	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, types.NewStoreError("get document", err)
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	docs, err := s.queryDocuments(ctx,
		"SELECT id, filename, content, created_at, embedding FROM documents ORDER BY created_at, id")
	if err != nil {
		return nil, types.NewStoreError("list documents", err)
	}
	return docs, nil
}

func (s *SQLiteStore) SetEmbedding(ctx context.Context, docID uuid.UUID, vec []float32) error {
	if len(vec) != s.dimensions {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(vec), s.dimensions)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET embedding = ? WHERE id = ?", encodeVector(vec), docID.String())
	if err != nil {
		return types.NewStoreError("set embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.NewStoreError("set embedding", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindNearest(ctx context.Context, queryVec []float32, k int) ([]types.Document, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if k <= 0 {
		return []types.Document{}, nil
	}

	candidates, err := s.queryDocuments(ctx,
		"SELECT id, filename, content, created_at, embedding FROM documents WHERE embedding IS NOT NULL ORDER BY created_at, id")
	if err != nil {
		return nil, types.NewStoreError("find nearest", err)
	}

	distances := make([]float64, len(candidates))
	for i := range candidates {
		distances[i] = l2Distance(queryVec, candidates[i].Embedding)
	}
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	// candidates arrive in insertion order, so a stable sort keeps it for ties
	sort.SliceStable(idx, func(a, b int) bool {
		return distances[idx[a]] < distances[idx[b]]
	})

	if k > len(idx) {
		k = len(idx)
	}
	result := make([]types.Document, k)
	for i := 0; i < k; i++ {
		result[i] = candidates[idx[i]]
	}
	s.logger.Debug("nearest documents found", "k", k, "candidates", len(candidates))
	return result, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM documents WHERE embedding IS NULL ORDER BY created_at, id LIMIT ?", limit)
	if err != nil {
		return nil, types.NewStoreError("list pending", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, types.NewStoreError("list pending", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, types.NewStoreError("list pending", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStoreError("list pending", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (*types.Document, error) {
	var (
		doc       types.Document
		rawID     string
		createdAt int64
		embedding []byte
	)
	if err := row.Scan(&rawID, &doc.Filename, &doc.Content, &createdAt, &embedding); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("bad document id %q: %w", rawID, err)
	}
	doc.ID = id
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	if embedding != nil {
		doc.Embedding, err = decodeVector(embedding)
		if err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
