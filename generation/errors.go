package generation

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is wrapped by the ValidationError returned for an unknown model id.
var ErrModelNotFound = errors.New("model not found")

// ValidationError is a caller-correctable problem with a request. It is
// reported before any provider call and is never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
