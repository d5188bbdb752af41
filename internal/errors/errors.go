package errors

import (
	"github.com/cockroachdb/errors"
)

// Standard sentinel errors. Every error produced by this codebase is marked
// with exactly one of these so callers can branch on category without
// inspecting messages.
var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrAlreadyExists           = errors.New("already exists")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrDatabase                = errors.New("database error")
	ErrInternal                = errors.New("internal error")
	ErrInvalidSubscription     = errors.New("invalid query subscription")
	ErrUnsupportedSubscription = errors.New("unsupported query subscription")
)

// Error codes used in API responses and logs
const (
	ErrCodeValidation              = "validation_error"
	ErrCodeNotFound                = "not_found"
	ErrCodeAlreadyExists           = "already_exists"
	ErrCodePermissionDenied        = "permission_denied"
	ErrCodeDatabase                = "database_error"
	ErrCodeInternal                = "internal_error"
	ErrCodeInvalidSubscription     = "invalid_query_subscription"
	ErrCodeUnsupportedSubscription = "unsupported_query_subscription"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsInvalidSubscription reports a structural misconfiguration at subscription
// construction time (e.g. a missing organization id). Not retryable; the
// subscription definition itself must be fixed.
func IsInvalidSubscription(err error) bool {
	return errors.Is(err, ErrInvalidSubscription)
}

// IsUnsupportedSubscription reports that a (dataset, aggregate) combination is
// not routable to any entity. Not retryable; surfaced to whoever defines the
// alert rule.
func IsUnsupportedSubscription(err error) bool {
	return errors.Is(err, ErrUnsupportedSubscription)
}

// ErrCode returns the string code for the sentinel err is marked with.
func ErrCode(err error) string {
	switch {
	case IsValidation(err):
		return ErrCodeValidation
	case IsNotFound(err):
		return ErrCodeNotFound
	case IsAlreadyExists(err):
		return ErrCodeAlreadyExists
	case IsPermissionDenied(err):
		return ErrCodePermissionDenied
	case IsDatabase(err):
		return ErrCodeDatabase
	case IsInvalidSubscription(err):
		return ErrCodeInvalidSubscription
	case IsUnsupportedSubscription(err):
		return ErrCodeUnsupportedSubscription
	default:
		return ErrCodeInternal
	}
}
