// Package kperrors defines the two-kind actor failure taxonomy: Recoverable
// failures that warn_on_failure may suppress, and Fatal failures that always
// terminate a run.
package kperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an actor failure.
type Kind string

const (
	// Recoverable signals an operational failure: a timeout, a remote
	// 4xx/5xx, a resource that could reasonably be absent. Suppressible
	// via warn_on_failure.
	Recoverable Kind = "recoverable"

	// Fatal signals a programming error or unrecoverable configuration
	// problem. warn_on_failure never suppresses it.
	Fatal Kind = "fatal"
)

// Code enumerates well-known failure causes, mirroring the condition names
// the core's components are specified to raise.
type Code string

const (
	CodeMissingToken        Code = "missing_token"
	CodeMissingContext      Code = "missing_context"
	CodeInvalidActor        Code = "invalid_actor"
	CodeInvalidOptions      Code = "invalid_options"
	CodeInvalidScript       Code = "invalid_script"
	CodeInvalidScriptName   Code = "invalid_script_name"
	CodeSchemaInvalid       Code = "schema_invalid"
	CodeActorTimedOut       Code = "actor_timed_out"
	CodeInvalidCredentials  Code = "invalid_credentials"
	CodeUnparseableResponse Code = "unparseable_response"
	CodeBadRequest          Code = "bad_request"
)

// Error is an actor failure: a kind, an optional code, a message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons against a Kind/Code sentinel built with
// New(kind, code, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return true
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// Recoverablef builds a Recoverable Error with a formatted message.
func Recoverablef(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: Recoverable, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Fatalf builds a Fatal Error with a formatted message.
func Fatalf(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: Fatal, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Timeout builds the standard ActorTimedOut failure, always Recoverable.
func Timeout(desc string) *Error {
	return &Error{
		Kind:    Recoverable,
		Code:    CodeActorTimedOut,
		Message: fmt.Sprintf("%s timed out", desc),
	}
}

// Normalize wraps an arbitrary error from an actor body as Recoverable,
// unless it is already a *Error (whose Kind is preserved) — matching the
// rule that any uncaught failure defaults to Recoverable except
// validation-like errors, which actor constructors already raise as Fatal
// *Error values directly.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke
	}
	return &Error{Kind: Recoverable, Message: err.Error(), Err: err}
}

// IsRecoverable reports whether err is a Recoverable *Error.
func IsRecoverable(err error) bool {
	var ke *Error
	return errors.As(err, &ke) && ke.Kind == Recoverable
}

// IsFatal reports whether err is a Fatal *Error.
func IsFatal(err error) bool {
	var ke *Error
	return errors.As(err, &ke) && ke.Kind == Fatal
}

// Aggregate combines a slice of child failures (nils skipped) into a single
// composite Error per the group aggregation rule: Fatal if any child was
// Fatal, else Recoverable. Returns nil if every element was nil.
func Aggregate(message string, errs []error) *Error {
	var nonNil []error
	fatal := false
	for _, e := range errs {
		if e == nil {
			continue
		}
		nonNil = append(nonNil, e)
		if IsFatal(e) {
			fatal = true
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	kind := Recoverable
	if fatal {
		kind = Fatal
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("%s (%d failure(s))", message, len(nonNil)),
		Err:     errors.Join(nonNil...),
	}
}
