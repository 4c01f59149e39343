package node

import (
	"errors"
	"fmt"
)

// ErrMalformedUnit marks units rejected by validation. Malformed units are
// skipped by the engine, never fatal.
var ErrMalformedUnit = errors.New("malformed unit")

// MalformedUnitError describes why a unit failed validation.
type MalformedUnitError struct {
	Path   string
	Reason string
}

func (e *MalformedUnitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *MalformedUnitError) Unwrap() error {
	return ErrMalformedUnit
}

func malformed(path, format string, args ...any) error {
	return &MalformedUnitError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
