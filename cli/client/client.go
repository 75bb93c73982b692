// Package client talks to the search API over HTTP.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) Health() (types.HealthResponse, error) {
	var health types.HealthResponse
	err := c.do(fiber.Get(c.baseURL+"/health"), fiber.StatusOK, &health)
	return health, err
}

func (c *Client) Upload(filename string, content []byte) (types.DocumentResponse, error) {
	var doc types.DocumentResponse
	a := fiber.Post(c.baseURL + "/upload").
		FileData(&fiber.FormFile{Fieldname: "file", Name: filename, Content: content}).
		MultipartForm(nil)
	err := c.do(a, fiber.StatusCreated, &doc)
	return doc, err
}

func (c *Client) List() ([]types.DocumentResponse, error) {
	var docs []types.DocumentResponse
	err := c.do(fiber.Get(c.baseURL+"/documents"), fiber.StatusOK, &docs)
	return docs, err
}

func (c *Client) Get(id uuid.UUID) (types.DocumentStatusResponse, error) {
	var doc types.DocumentStatusResponse
	err := c.do(fiber.Get(c.baseURL+"/documents/"+id.String()), fiber.StatusOK, &doc)
	return doc, err
}

// Search returns up to k documents nearest to query. k <= 0 lets the
// server pick its default.
func (c *Client) Search(query string, k int) ([]types.DocumentResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	if k > 0 {
		params.Set("k", strconv.Itoa(k))
	}
	var docs []types.DocumentResponse
	err := c.do(fiber.Post(c.baseURL+"/search").QueryString(params.Encode()), fiber.StatusOK, &docs)
	return docs, err
}

func (c *Client) do(a *fiber.Agent, want int, out any) error {
	code, body, errs := a.Timeout(c.timeout).Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code != want {
		return &APIError{Status: code, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message from either error shape the server
// sends: {code, error} or {status, errors}.
func errorMessage(body []byte) string {
	var payload struct {
		Error  string            `json:"error"`
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Error != "" {
		return payload.Error
	}
	parts := make([]string, 0, len(payload.Errors))
	for field, msg := range payload.Errors {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}
