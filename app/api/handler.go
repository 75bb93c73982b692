package api

import (
	"context"
	"errors"
	"io"

	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*types.Document, error)
}

type DocumentReader interface {
	List(ctx context.Context) ([]types.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Document, error)
}

type DocumentHandler struct {
	ingest    Uploader
	documents DocumentReader
}

func NewDocumentHandler(ingest Uploader, documents DocumentReader) *DocumentHandler {
	return &DocumentHandler{
		ingest:    ingest,
		documents: documents,
	}
}

// HandleUpload stores the multipart "file" field and schedules its
// embedding. The response does not wait for the embedding.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest("multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	doc, err := h.ingest.Upload(c.UserContext(), fileHeader.Filename, data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(types.NewDocumentResponse(*doc))
}

func (h *DocumentHandler) HandleGetDocuments(c *fiber.Ctx) error {
	docs, err := h.documents.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(types.NewDocumentResponses(docs))
}

func (h *DocumentHandler) HandleGetDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.documents.Get(c.UserContext(), id)
	if errors.Is(err, types.ErrNotFound) {
		return ErrNotFound(id, "document")
	}
	if err != nil {
		return err
	}
	return c.JSON(types.DocumentStatusResponse{
		DocumentResponse: types.NewDocumentResponse(*doc),
		Embedded:         doc.Embedded(),
	})
}
