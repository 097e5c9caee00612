package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Expected business outcomes are sentinel errors matched with errors.Is at
// the boundaries. Anything else is an infrastructure fault: it bubbles up
// unchanged and triggers a rollback at the command runner.
var (
	// ErrNotFound covers both "does not exist" and "exists outside the
	// caller's tenant scope"; the two are never distinguishable.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict signals a name or identifier already taken within scope.
	ErrConflict = errors.New("auth: already exists")
	// ErrInvalidCredentials is the single generic authentication failure:
	// unknown email, inactive account and bad password all collapse here.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken covers absent, expired, revoked and tampered tokens
	// uniformly.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrForbidden is the fixed authorization failure, no further detail.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrSystemEntity rejects mutation of global system roles and groups.
	ErrSystemEntity = errors.New("auth: cannot modify system role or group")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates field-level input failures. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "auth: invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
