package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"neuralsearch/model"
	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "api error",
			err:    ErrInvalidID(),
			status: http.StatusBadRequest,
			body:   `{"code":400,"error":"invalid id given"}`,
		},
		{
			name:   "request validation",
			err:    NewValidationError(map[string]string{"Query": "failed on 'required' tag"}),
			status: http.StatusBadRequest,
			body:   `{"status":400,"errors":{"Query":"failed on 'required' tag"}}`,
		},
		{
			name:   "domain validation",
			err:    fmt.Errorf("upload: %w", types.NewValidationError("file", "file must be UTF-8 encoded text")),
			status: http.StatusBadRequest,
			body:   `{"status":400,"errors":{"file":"file must be UTF-8 encoded text"}}`,
		},
		{
			name:   "not found",
			err:    types.ErrNotFound,
			status: http.StatusNotFound,
			body:   `{"code":404,"error":"document not found"}`,
		},
		{
			name:   "store failure",
			err:    types.NewStoreError("insert document", errors.New("connection refused")),
			status: http.StatusInternalServerError,
			body:   `{"code":500,"error":"storage unavailable"}`,
		},
		{
			name:   "model unavailable",
			err:    fmt.Errorf("embed query: %w", fmt.Errorf("load embedding model: %w", model.ErrModelUnavailable)),
			status: http.StatusServiceUnavailable,
			body:   `{"code":503,"error":"embedding model unavailable"}`,
		},
		{
			name:   "fiber error",
			err:    fiber.ErrMethodNotAllowed,
			status: http.StatusMethodNotAllowed,
			body:   `{"code":405,"error":"Method Not Allowed"}`,
		},
		{
			name:   "unknown error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			body:   `{"code":500,"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var got json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.JSONEq(t, tt.body, string(got))
		})
	}
}
