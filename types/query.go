package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// SearchParams are read from the query string of POST /search.
type SearchParams struct {
	Query string `query:"query" validate:"required"`
	K     int    `query:"k" validate:"omitempty,min=1"`
}

var validate = validator.New()

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *SearchParams) Validate() map[string]string {
	return structErrors(validate.Struct(params))
}

func structErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	errors := make(map[string]string, len(errs))
	for _, e := range errs {
		errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errors
}
