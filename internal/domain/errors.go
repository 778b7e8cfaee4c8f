package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Book Errors
	// ===========================================

	// ErrBookNotFound indicates the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrBookAlreadyExists indicates a book with the same ISBN exists.
	ErrBookAlreadyExists = errors.New("book already exists")

	// ErrBookUnavailable indicates the book is currently on loan.
	// Exactly one of any set of concurrent borrow attempts avoids this
	// error; the transition is a conditional update on the availability
	// flag, so losers observe it instead of a lost update.
	ErrBookUnavailable = errors.New("book is not available")

	// ===========================================
	// Loan Errors
	// ===========================================

	// ErrLoanNotFound indicates the return transition found no matching
	// open loan. It deliberately covers three cases - no such loan id,
	// loan owned by a different user, loan already returned - so the
	// return path leaks neither existence nor ownership.
	ErrLoanNotFound = errors.New("loan not found")

	// ===========================================
	// Authentication/Authorization Errors
	// ===========================================

	// ErrUnauthorized indicates the request carried no valid credential.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden indicates a valid identity with insufficient privilege.
	ErrForbidden = errors.New("access denied")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	// Field names the offending input field.
	Field string

	// Message describes the violation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AsValidation extracts a ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
