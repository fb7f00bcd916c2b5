package jobs

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNotReady   = errors.New("job not completed")
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries a client-facing message for bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
