// Package errors carries the stack-annotated errors used for failures that
// happen outside a fetch call (configuration, construction, token stores).
// Call failures are reported as *fetch.Error instead.
package errors

import (
	stdErrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Error wraps an error with a message and stack trace.
type Error struct {
	msg   string
	err   error
	stack string
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) StackTrace() string {
	return e.stack
}

// Wrap wraps err with msg and stack trace. It returns nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		msg:   msg,
		err:   err,
		stack: callers(),
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		msg:   fmt.Sprintf(format, args...),
		err:   err,
		stack: callers(),
	}
}

// New creates a new error with stack trace.
func New(msg string) error {
	return &Error{
		msg:   msg,
		stack: callers(),
	}
}

// Is and As forward to the standard library so callers need a single import.
func Is(err, target error) bool { return stdErrors.Is(err, target) }
func As(err error, target any) bool { return stdErrors.As(err, target) }

// StackTrace returns the stack recorded by the outermost *Error in err's chain.
func StackTrace(err error) string {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.stack
	}
	return ""
}

func callers() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
