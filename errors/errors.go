// Package errors implements the error types used throughout the bolt
// connection core. Errors carry a kind, an optional wrapped error and a
// stack trace captured at creation time.
package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Kind classifies an error for propagation decisions. Fatal kinds latch
// the connection as broken; server failures and ignored responses are
// delivered only to the owning observer.
type Kind int

const (
	// KindUnknown is the zero kind for plain wrapped errors.
	KindUnknown Kind = iota
	// KindTransport marks channel connect/read/write failures.
	KindTransport
	// KindHandshake marks version negotiation failures.
	KindHandshake
	// KindProtocol marks unknown inbound signatures or malformed structures.
	KindProtocol
	// KindSerialization marks packing of an unrepresentable value.
	KindSerialization
	// KindServerFailure marks a FAILURE message from the server.
	KindServerFailure
	// KindIgnored marks operations dropped because a prior failure is
	// still unacknowledged.
	KindIgnored
)

// Error is the base error type adds stack trace and wrapping errors
type Error struct {
	msg     string
	kind    Kind
	code    string
	wrapped error
	stack   []byte
}

// New makes a new error
func New(msg string, args ...interface{}) *Error {
	return &Error{
		msg:   fmt.Sprintf(msg, args...),
		stack: debug.Stack(),
	}
}

// Wrap wraps an error with a new error
func Wrap(err error, msg string, args ...interface{}) *Error {
	if e, ok := err.(*Error); ok {
		return &Error{
			msg:     fmt.Sprintf(msg, args...),
			kind:    e.kind,
			code:    e.code,
			wrapped: e,
		}
	}

	return &Error{
		msg:     fmt.Sprintf(msg, args...),
		wrapped: err,
		stack:   debug.Stack(),
	}
}

// Transport makes a new transport error
func Transport(msg string, args ...interface{}) *Error {
	e := New(msg, args...)
	e.kind = KindTransport
	return e
}

// WrapTransport wraps an underlying I/O error as a transport error
func WrapTransport(err error, msg string, args ...interface{}) *Error {
	e := Wrap(err, msg, args...)
	e.kind = KindTransport
	return e
}

// Handshake makes a new handshake error
func Handshake(msg string, args ...interface{}) *Error {
	e := New(msg, args...)
	e.kind = KindHandshake
	return e
}

// Protocol makes a new protocol error
func Protocol(msg string, args ...interface{}) *Error {
	e := New(msg, args...)
	e.kind = KindProtocol
	return e
}

// Serialization makes a new serialization error
func Serialization(msg string, args ...interface{}) *Error {
	e := New(msg, args...)
	e.kind = KindSerialization
	return e
}

// ServerFailure builds an error from the metadata of a FAILURE message.
// The server supplies at least the "code" and "message" keys.
func ServerFailure(metadata map[string]interface{}) *Error {
	code, _ := metadata["code"].(string)
	message, _ := metadata["message"].(string)
	if code == "" {
		code = "Neo.DatabaseError.General.UnknownError"
	}
	if message == "" {
		message = "An unknown failure occurred"
	}
	return &Error{
		msg:   fmt.Sprintf("%s: %s", code, message),
		kind:  KindServerFailure,
		code:  code,
		stack: debug.Stack(),
	}
}

// Ignored builds the error delivered for an IGNORED response when no
// originating failure is known.
func Ignored(metadata map[string]interface{}) *Error {
	e := New("The server ignored the request: %+v", metadata)
	e.kind = KindIgnored
	return e
}

// Error gets the error output
func (e *Error) Error() string {
	return e.error(0)
}

// Kind gets the classification of this error
func (e *Error) Kind() Kind {
	return e.kind
}

// Code gets the server failure code, empty for non-server errors
func (e *Error) Code() string {
	return e.code
}

// Inner returns the inner error wrapped by this error
func (e *Error) Inner() error {
	return e.wrapped
}

// Unwrap supports the errors.Is/As chain of the standard library
func (e *Error) Unwrap() error {
	return e.wrapped
}

// InnerMost returns the innermost error wrapped by this error
func (e *Error) InnerMost() error {
	if e.wrapped == nil {
		return e
	}

	if inner, ok := e.wrapped.(*Error); ok {
		return inner.InnerMost()
	}

	return e.wrapped
}

// IsFatal reports whether err poisons the connection. Server failures and
// ignored responses leave the connection usable; everything else written
// by this package does not.
func IsFatal(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return true
	}
	switch e.kind {
	case KindServerFailure, KindIgnored:
		return false
	}
	return true
}

// IsServerFailure reports whether err came from a FAILURE message
func IsServerFailure(err error) bool {
	e, ok := err.(*Error)
	return ok && e.kind == KindServerFailure
}

// CodeOf returns the server failure code carried by err, if any
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.code
	}
	return ""
}

func (e *Error) error(level int) string {
	msg := fmt.Sprintf("%s%s", strings.Repeat("\t", level), e.msg)
	if e.wrapped != nil {
		if wrappedErr, ok := e.wrapped.(*Error); ok {
			msg += fmt.Sprintf("\n%s", wrappedErr.error(level+1))
		} else {
			msg += fmt.Sprintf("\nInternal Error(%T):%s", e.wrapped, e.wrapped.Error())
		}
	}

	if len(e.stack) > 0 {
		msg += fmt.Sprintf("\n\n Stack Trace:\n\n%s", e.stack)
	}

	return msg
}
