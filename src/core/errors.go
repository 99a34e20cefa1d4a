// Package core holds the data model for Sakefiles: targets, meta-targets,
// the parsed document, and the error kinds the rest of the engine raises.
package core

import "fmt"

// Kind identifies one of the named error categories from the error-handling design.
type Kind string

// The error kinds the engine can raise. These are surfaced by name in
// messages (not by Go type switch) so that the CLI's "Error: ..." line
// always reads the same regardless of which layer produced it.
const (
	ParseError           Kind = "ParseError"
	UnknownTarget         Kind = "UnknownTarget"
	CycleDetected         Kind = "CycleDetected"
	IntegrityError        Kind = "IntegrityError"
	MissingFile           Kind = "MissingFile"
	FormulaFailed         Kind = "FormulaFailed"
	StoreVersionMismatch  Kind = "StoreVersionMismatch"
	InvalidMacro          Kind = "InvalidMacro"
	MissingInclude        Kind = "MissingInclude"
)

// Error is a fatal error tagged with one of the Kinds above.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf constructs an *Error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrapf constructs an *Error of the given kind wrapping an underlying cause.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
