package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"neuralsearch/model"
	"neuralsearch/store"
	"neuralsearch/types"
)

const (
	DefaultK = 5
	MaxK     = 100
)

type SearchService struct {
	store    store.DocumentStorer
	embedder model.EmbedderInterface
	defaultK int
	maxK     int
	logger   *slog.Logger
}

func NewSearchService(s store.DocumentStorer, e model.EmbedderInterface, defaultK, maxK int, logger *slog.Logger) *SearchService {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if maxK <= 0 {
		maxK = MaxK
	}
	if defaultK > maxK {
		defaultK = maxK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		store:    s,
		embedder: e,
		defaultK: defaultK,
		maxK:     maxK,
		logger:   logger.With("component", "search"),
	}
}

// Search returns up to k embedded documents nearest to query, closest
// first. k <= 0 selects the default; k above the maximum is clamped.
// A blank query is a ValidationError.
func (s *SearchService) Search(ctx context.Context, query string, k int) ([]types.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.NewValidationError("query", "query must not be blank")
	}
	if k <= 0 {
		k = s.defaultK
	}
	if k > s.maxK {
		k = s.maxK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, types.NewValidationError("query", "query has no embeddable text")
	}

	docs, err := s.store.FindNearest(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search finished", "k", k, "results", len(docs))
	return docs, nil
}
