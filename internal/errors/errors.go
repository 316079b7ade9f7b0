// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errors provides the Kind-tagged error type shared by the reachability engine.
//
// Integrity violations (a graph that references an ACL, NAT pool or interface that
// does not exist) are raised with Assert and are never recovered: continuing with a
// malformed graph produces wrong answers rather than incomplete ones.
package errors

import (
	"errors"
	"fmt"
)

// Kind defines the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindValidation
	KindNotFound
	KindIntegrity
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind and optional attributes.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a new Error of the specified kind. A nil err yields nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to an error. Errors that are not *Error are wrapped as KindInternal.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of the outermost *Error in the chain, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects attributes along the chain. Outer attributes win on key conflicts.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error
	for cur := err; cur != nil; cur = e.Underlying {
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
	}
	return attrs
}

// Assert panics with a KindIntegrity error when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(Errorf(KindIntegrity, format, args...))
	}
}

// Integrity reports whether err is an integrity violation.
func Integrity(err error) bool {
	return GetKind(err) == KindIntegrity
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
