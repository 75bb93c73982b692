package api

import (
	"errors"
	"fmt"
	"log/slog"

	"neuralsearch/model"
	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr   Error
		valErr   ValidationError
		fiberErr *fiber.Error
		fieldErr *types.ValidationError
		storeErr *types.StoreError
	)

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &valErr):
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &fieldErr):
		valErr = NewValidationError(map[string]string{fieldErr.Field: fieldErr.Message})
		return c.Status(valErr.Status).JSON(valErr)
	case errors.Is(err, types.ErrNotFound):
		apiErr = NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &storeErr):
		apiErr = NewError(fiber.StatusInternalServerError, "storage unavailable")
	case errors.Is(err, model.ErrModelUnavailable):
		apiErr = NewError(fiber.StatusServiceUnavailable, "embedding model unavailable")
	case errors.As(err, &fiberErr):
		apiErr = NewError(fiberErr.Code, fiberErr.Message)
	default:
		apiErr = NewError(fiber.StatusInternalServerError, "internal server error")
	}

	if apiErr.Code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", err)
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusBadRequest,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest(msg string) Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: msg,
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}
