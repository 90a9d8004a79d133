package store

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNetwork       = errors.New("network failure")
	ErrValidation    = errors.New("validation failure")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("backend not configured")
)

// Error is a classified storage failure
type Error struct {
	Op   string
	Kind error
	Err  error
}

// E builds a classified error for op
func E(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy kind of err, or nil when err is unclassified
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConfiguration, ErrNetwork} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
