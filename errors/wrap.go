// Package errors mirrors the github.com/pkg/errors API used across the module and defines the coded errors that are
// surfaced to callers of a result stream.
//
// Coded errors (PqError, RowExecError) are user facing and never carry a stack trace. Everything else is wrapped with
// a stack at the point it enters the module so a logged error can always be traced.
package errors

import (
	stderrors "errors" //nolint: depguard

	"github.com/pkg/errors" //nolint: depguard
)

// New returns an error with the supplied message and records the stack trace at the point it was called.
func New(message string) error {
	return errors.New(message)
}

// Errorf formats according to a format specifier and records the stack trace at the point it was called.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with a message and a stack trace. If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and a stack trace. If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// WithStack annotates err with a stack trace. If err is nil, WithStack returns nil.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// MaybeAddStack adds a stack trace unless err is a coded error meant for the user.
func MaybeAddStack(err error) error {
	if err == nil {
		return nil
	}
	var c coded
	if stderrors.As(err, &c) {
		return err
	}
	return errors.WithStack(err)
}

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error { return errors.Cause(err) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and
// returns true.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
