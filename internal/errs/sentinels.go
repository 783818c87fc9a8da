// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Error kinds. Every error returned by the core matches exactly one of them via errors.Is.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller is authenticated but lacks privilege or ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated indicates a missing, invalid or expired credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Specific errors. Each one unwraps to its kind.
var (
	ErrUserNotFound        = kinded(ErrNotFound, "user not found")
	ErrBookNotFound        = kinded(ErrNotFound, "book not found")
	ErrLoanNotFound        = kinded(ErrNotFound, "loan not found")
	ErrReservationNotFound = kinded(ErrNotFound, "reservation not found")
	ErrAuthorNotFound      = kinded(ErrNotFound, "author not found")
	ErrCategoryNotFound    = kinded(ErrNotFound, "category not found")

	ErrDuplicateEmail    = kinded(ErrConflict, "email already registered")
	ErrBookUnavailable   = kinded(ErrConflict, "book unavailable")
	ErrNoExtensionsLeft  = kinded(ErrConflict, "no extensions left")
	ErrLoanClosed        = kinded(ErrConflict, "loan already returned")
	ErrInvalidTransition = kinded(ErrConflict, "invalid state transition")
	ErrStillReferenced   = kinded(ErrConflict, "still referenced")
	ErrCategoryExists    = kinded(ErrConflict, "category already exists")

	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials    = kinded(ErrUnauthenticated, "invalid credentials")
	ErrInvalidOrExpiredToken = kinded(ErrUnauthenticated, "invalid or expired token")
)

type kindError struct {
	kind error
	msg  string
}

func kinded(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Invalid builds an ErrInvalidInput carrying a field-level reason.
func Invalid(reason string) error { return &kindError{kind: ErrInvalidInput, msg: "invalid input: " + reason} }
