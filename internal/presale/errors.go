// internal/presale/errors.go
package presale

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the contract address is unset or a placeholder.
	ErrNotConfigured = errors.New("presale contract address is not configured")
	ErrEmptyResult   = errors.New("empty call result")
	ErrInvalidAmount = errors.New("amount must be a positive decimal")
	ErrTooPrecise    = errors.New("amount has more fractional digits than the native unit")
)

// DecodeError reports a read call whose result does not match the
// expected schema.
type DecodeError struct {
	Method string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s result: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
