package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors map onto the HTTP taxonomy: validation 400, not found 404,
// conflict 409, insufficient data 400, internal 500.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyCommitted = errors.New("already committed")
	ErrInsufficientData = errors.New("insufficient data to generate a plan")
)

// NetworkError is client-side only. Retryable errors keep the pending queue
// intact and drive the offline replay path.
type NetworkError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
