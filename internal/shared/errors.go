package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail indicates an account already uses the email, deleted rows included.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrUnknownRole indicates a role selector that resolves to no known role.
	ErrUnknownRole = errors.New("unknown role")
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller lacks the privilege for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated indicates a missing, invalid or expired credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSystemRole indicates a mutation attempt on a system-protected role.
	ErrSystemRole = errors.New("system role cannot be modified")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries field-level detail for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return ErrValidation.Error()
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError from field messages.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
