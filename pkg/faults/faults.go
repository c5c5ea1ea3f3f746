// Package faults holds the error taxonomy shared by dispatch and request composition.
package faults

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration marks setups that can never work: unset URIs,
	// unsupported member signatures, missing dispatcher constructors.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedOperation marks composition calls that conflict with the
	// current state of a request (body kind mismatch, body on GET/HEAD).
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrArgument marks empty or missing required names.
	ErrArgument = errors.New("invalid argument")
)

// Configuration returns an error matching ErrConfiguration.
func Configuration(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// Unsupported returns an error matching ErrUnsupportedOperation.
func Unsupported(format string, args ...any) error {
	return errors.Wrapf(ErrUnsupportedOperation, format, args...)
}

// Argument returns an error matching ErrArgument.
func Argument(format string, args ...any) error {
	return errors.Wrapf(ErrArgument, format, args...)
}
