// Package deliciousfood holds the types shared by every layer of the
// DeliciousFood server: the error taxonomy that the data-access, service, and
// API layers communicate with, and a generic multi-cause error compatible with
// the errors API.
package deliciousfood

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("the requested entity could not be found")
	ErrValidation          = errors.New("the request is not valid for this record")
	ErrUnauthorized        = errors.New("the caller has no valid session")
	ErrPermission          = errors.New("you don't have permission to do that")
	ErrDB                  = errors.New("an error occured with the DB")
	ErrConstraintViolation = errors.New("a uniqueness constraint was violated")
	ErrNoTransaction       = errors.New("no unit of work is active")
)

// Error is the error type most functions across the server return. It pairs
// a message describing what went wrong with zero or more underlying causes,
// and it cooperates with the errors API: errors.Is reports true for any error
// held anywhere in its cause chain, so callers can check failure conditions
// against the sentinel errors without type assertions.
//
// Construct one with NewError.
type Error struct {
	msg   string
	cause []error
}

// Error renders the message. With causes present, the first cause's own
// message is appended after a colon; an empty message with causes renders
// just the first cause. No message and no causes renders the empty string.
func (e Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause[0].Error()
	}

	if e.cause != nil {
		return e.msg + ": " + e.cause[0].Error()
	}

	return e.msg
}

// Unwrap returns the cause list, or nil when there are none. It exists for
// the errors API.
func (e Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// Is reports whether target is this exact Error (same message, same causes)
// or appears somewhere among the causes, recursing through causes that are
// themselves Error values. It exists for the errors API.
func (e Error) Is(target error) bool {
	if other, ok := target.(Error); ok && e.msg == other.msg && len(e.cause) == len(other.cause) {
		same := true
		for i := range e.cause {
			if e.cause[i] != other.cause[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	for _, cause := range e.cause {
		// a cause that is itself an Error is matched with its own Is, so its
		// cause chain is searched too
		if sub, ok := cause.(Error); ok {
			if sub.Is(target) {
				return true
			}
		} else if cause == target {
			return true
		}
	}
	return false
}

// NewError creates an Error with the given message wrapping the given causes.
// Causes are optional; every cause given will match the result under
// errors.Is.
func NewError(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

// NotFoundError is returned when a lookup for an entity by some key produced
// nothing. It carries the entity type name, the key that was searched on, and
// the value that was searched for, and it matches ErrNotFound under errors.Is.
type NotFoundError struct {
	Entity string
	Key    string
	Value  any
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with property %s = %v", e.Entity, e.Key, e.Value)
}

// Is returns whether target is ErrNotFound. This function is for interaction
// with the errors API.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a NotFoundError for the named entity type looked up
// by the given key and value.
func NewNotFoundError(entity string, key string, value any) NotFoundError {
	return NotFoundError{Entity: entity, Key: key, Value: value}
}

// ValidationError is returned when input is malformed, a business rule is
// violated, or an operation is not valid for a particular record. It carries
// the name of the offending field along with a message suitable for showing to
// the caller, and it matches ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is returns whether target is ErrValidation. This function is for interaction
// with the errors API.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field string, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}
