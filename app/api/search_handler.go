package api

import (
	"context"

	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]types.Document, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(search Searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

// HandleSearch answers POST /search?query=<text>&k=<n> with up to k
// embedded documents, nearest first.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if err := c.QueryParser(&params); err != nil {
		return ErrBadRequest("invalid query parameters")
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	docs, err := h.search.Search(c.UserContext(), params.Query, params.K)
	if err != nil {
		return err
	}
	return c.JSON(types.NewDocumentResponses(docs))
}
