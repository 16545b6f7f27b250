package store

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("store: order not found")
	ErrAssetNotFound   = errors.New("store: asset not found")
	ErrUnknownCurrency = errors.New("store: currency not allow-listed")
	ErrInvalidDriver   = errors.New("store: invalid database driver")
	ErrMissingDSN      = errors.New("store: database dsn is required")
	ErrOrderExists     = errors.New("store: order already exists")
)

// QueryError wraps a failed statement with the operation that issued
// it, so callers can log a stable operation name instead of SQL text.
type QueryError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Cause }

func NewQueryError(operation, message string, cause error) *QueryError {
	return &QueryError{Operation: operation, Message: message, Cause: cause}
}

// IsQueryError reports whether err carries a QueryError anywhere in its
// chain.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
