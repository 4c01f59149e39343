package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnitTimeout marks units abandoned after exceeding the per-unit soft
// timeout. Handled exactly like a malformed unit: skipped, never fatal.
var ErrUnitTimeout = errors.New("unit timeout")

// UnitTimeoutError records which unit timed out.
type UnitTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *UnitTimeoutError) Error() string {
	return fmt.Sprintf("%s: matching abandoned after %s", e.Path, e.Timeout)
}

func (e *UnitTimeoutError) Unwrap() error {
	return ErrUnitTimeout
}
