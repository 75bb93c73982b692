package types

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded text file. Embedding stays nil until the
// embedding worker has processed it.
type Document struct {
	ID        uuid.UUID
	Filename  string
	Content   string
	CreatedAt time.Time
	Embedding []float32
}

// Embedded reports whether the document is searchable.
func (d *Document) Embedded() bool {
	return len(d.Embedding) > 0
}

// DocumentResponse is the wire representation of a document. The
// embedding is never sent to clients.
type DocumentResponse struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentStatusResponse adds the searchability flag for point lookups.
type DocumentStatusResponse struct {
	DocumentResponse
	Embedded bool `json:"embedded"`
}

func NewDocumentResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
}

func NewDocumentResponses(docs []Document) []DocumentResponse {
	resp := make([]DocumentResponse, len(docs))
	for i, doc := range docs {
		resp[i] = NewDocumentResponse(doc)
	}
	return resp
}

type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
}
