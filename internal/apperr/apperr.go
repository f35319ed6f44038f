// Package apperr defines the typed error taxonomy shared by services and
// the HTTP layer. Business-rule violations are raised where detected and
// propagate unmodified to one centralized handler that maps Kind to an
// HTTP status and serializes the message plus any attached context.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status-code mapping.
type Kind int

const (
	// Internal is anything unclassified. Maps to 500.
	Internal Kind = iota
	// Validation is malformed or missing input, or an invariant
	// violation such as a non-zero sum. Maps to 400.
	Validation
	// Unauthorized is a missing, invalid, or expired credential. Maps to 401.
	Unauthorized
	// Forbidden is an authenticated caller lacking permission. Maps to 403.
	Forbidden
	// NotFound is a missing user, group, game, row, or member. Maps to 404.
	NotFound
	// Conflict is a duplicate handle, already-a-member, or exhausted
	// token retries. Maps to 409.
	Conflict
)

// Error is a typed error with optional context payloads that the HTTP
// layer serializes next to the message (duplicate names on a settle
// failure, the computed sum on a zero-sum failure).
type Error struct {
	Kind    Kind
	Message string

	// Duplicates carries the duplicate player names on a settle failure.
	Duplicates []string

	// CurrentSum carries the computed sum on a zero-sum failure.
	CurrentSum *float64

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error's kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New builds a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validationf builds a 400 error.
func Validationf(format string, args ...any) *Error { return New(Validation, format, args...) }

// Unauthorizedf builds a 401 error.
func Unauthorizedf(format string, args ...any) *Error { return New(Unauthorized, format, args...) }

// Forbiddenf builds a 403 error.
func Forbiddenf(format string, args ...any) *Error { return New(Forbidden, format, args...) }

// NotFoundf builds a 404 error.
func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }

// Conflictf builds a 409 error.
func Conflictf(format string, args ...any) *Error { return New(Conflict, format, args...) }

// Internalf builds a 500 error.
func Internalf(format string, args ...any) *Error { return New(Internal, format, args...) }

// NonZeroSum builds the validation error for a broken zero-sum invariant,
// carrying the computed sum for the client to display.
func NonZeroSum(sum float64) *Error {
	e := Validationf("transactions must sum to zero, current sum is %.2f", sum)
	e.CurrentSum = &sum
	return e
}

// DuplicateNames builds the validation error for a settle blocked by
// duplicate player names.
func DuplicateNames(names []string) *Error {
	e := Validationf("duplicate player names: %v", names)
	e.Duplicates = names
	return e
}

// From extracts the typed error from err, wrapping unclassified errors
// as Internal so the handler always has a Kind to map.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: Internal, Message: "internal server error", Err: err}
}

// IsKind reports whether err is a typed error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
