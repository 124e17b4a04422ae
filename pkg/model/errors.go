package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidInput is returned when a caller supplies a value outside of the accepted domain
	ErrInvalidInput = goerr.New("invalid input")

	// ErrMissingField is matched by every MissingFieldError
	ErrMissingField = goerr.New("missing session field")

	// ErrStorageUnavailable marks failures of the underlying durable store
	ErrStorageUnavailable = goerr.New("storage unavailable")
)

// MissingFieldError reports a session field that an earlier step was expected to set
type MissingFieldError struct {
	Field SessionField
}

func (e *MissingFieldError) Error() string {
	return "missing session field: " + string(e.Field)
}

// Is makes errors.Is(err, ErrMissingField) true for any MissingFieldError
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// NewMissingFieldError wraps a MissingFieldError with the field name as a goerr value
func NewMissingFieldError(field SessionField) error {
	return goerr.Wrap(&MissingFieldError{Field: field}, "required session field is not set", goerr.V("field", field))
}

// StorageError joins cause with ErrStorageUnavailable so that callers can
// classify it while keeping the driver error in the chain.
func StorageError(cause error, msg string, options ...goerr.Option) error {
	return goerr.Wrap(errors.Join(ErrStorageUnavailable, cause), msg, options...)
}

// MissingField extracts the field name if err is a MissingFieldError
func MissingField(err error) (SessionField, bool) {
	var mfe *MissingFieldError
	if errors.As(err, &mfe) {
		return mfe.Field, true
	}
	return "", false
}
