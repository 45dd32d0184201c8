package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// Validate validates the PDPConfig using struct tags and cross-field rules.
func (c *PDPConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	var errs error
	if err := v.Struct(c); err != nil {
		errs = multierr.Append(errs, formatValidationErrors(err))
	}
	if err := c.validateFixedTime(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly
// messages, matching the teacher's per-field formatting.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required for this backend", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
