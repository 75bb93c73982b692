package service

import (
	"context"

	"neuralsearch/store"
	"neuralsearch/types"

	"github.com/google/uuid"
)

type DocumentService struct {
	store store.DocumentStorer
}

func NewDocumentService(s store.DocumentStorer) *DocumentService {
	return &DocumentService{store: s}
}

func (s *DocumentService) List(ctx context.Context) ([]types.Document, error) {
	return s.store.ListDocuments(ctx)
}

func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	return s.store.GetDocumentByID(ctx, id)
}
