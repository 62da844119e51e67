// Package errs implements the error taxonomy described for the PPT core:
// a closed set of numeric codes, one per row of the error-handling table,
// with parent-error chaining so a wrapped cause survives up the stack.
package errs

import (
	"errors"
	"fmt"
)

// Code is a closed classification of the errors the PPT core can raise.
// It deliberately does not reuse HTTP status numbers: these are protocol
// and process-lifecycle errors, not transport-layer ones.
type Code uint16

const (
	Unknown Code = iota
	MalformedFrame
	PeerClosed
	IOError
	HandshakeTimeout
	HandshakeRejected
	AuthNotSupported
	DispatchTerminateImmediate
	DispatchUserSyntax
	InternalFatal
	SyntaxUser
)

func (c Code) String() string {
	switch c {
	case MalformedFrame:
		return "MalformedFrame"
	case PeerClosed:
		return "PeerClosed"
	case IOError:
		return "Io"
	case HandshakeTimeout:
		return "HandshakeTimeout"
	case HandshakeRejected:
		return "HandshakeRejected"
	case AuthNotSupported:
		return "AuthNotSupported"
	case DispatchTerminateImmediate:
		return "DispatchTerminateImmediate"
	case DispatchUserSyntax:
		return "DispatchUserSyntax"
	case InternalFatal:
		return "InternalFatal"
	case SyntaxUser:
		return "SyntaxUser"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by every package under
// internal/ppt, internal/worker, internal/supervisor and internal/admin.
// It carries a Code for programmatic dispatch and an optional parent for
// the original cause, mirroring errors.Unwrap semantics.
type Error struct {
	code   Code
	msg    string
	parent error
}

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

func Wrap(code Code, msg string, parent error) *Error {
	return &Error{code: code, msg: msg, parent: parent}
}

func (e *Error) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.parent)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.parent }

func (e *Error) Code() Code { return e.code }

// Is reports whether err carries the given code, unwrapping parents.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.code == code
	}
	return false
}

// CodeOf extracts the Code of err, or Unknown if err isn't one of ours.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return Unknown
}
