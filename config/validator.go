package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []ValidationError{{Field: "config", Message: err.Error()}}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   yamlPath(fe.Namespace()),
				Message: fmt.Sprintf("failed on '%s' rule", fe.Tag()),
			})
		}
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Search.DefaultK > c.Search.MaxK {
		errs = append(errs, ValidationError{
			Field:   "search.default_k",
			Message: "default_k must not exceed max_k",
		})
	}

	if c.Queue.Driver == "memory" && !c.Worker.Embedded {
		errs = append(errs, ValidationError{
			Field:   "worker.embedded",
			Message: "memory queue requires the embedded worker",
		})
	}

	if c.Queue.Driver == "postgres" && c.Database.Driver != "postgres" {
		errs = append(errs, ValidationError{
			Field:   "queue.driver",
			Message: "postgres queue requires the postgres database driver",
		})
	}

	return errs
}

// yamlPath drops the root type name: "Config.embedding.base_url" -> "embedding.base_url".
func yamlPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
