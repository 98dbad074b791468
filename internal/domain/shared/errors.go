// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import "errors"

// Error kinds. Every DomainError carries one of these so callers can
// classify failures with errors.Is without knowing which layer raised
// them.
var (
	ErrNotFound = errors.New("entity not found")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrInvalidState    = errors.New("invalid state")

	// ErrPartialCompletion marks a completion that is durably recorded
	// while one of its downstream effects (XP, streak, badges) is not.
	ErrPartialCompletion = errors.New("completion recorded but crediting incomplete")

	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrTimeout                = errors.New("operation timeout")
)

// DomainError attaches domain, operation and kind to an error so logs
// read "progress.Credit: ..." and callers can branch on the kind.
type DomainError struct {
	Domain  string // "learner", "progress", "course"
	Op      string // failing operation, "Credit", "TouchStreak"
	Kind    error  // one of the kind sentinels above
	Message string
	Err     error // underlying cause, may be nil
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause when present, the kind otherwise.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the cause, so
// errors.Is(err, ErrServiceUnavailable) works whichever way the error
// was built.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Well-known errors raised across the learner, progress and course
// domains.
var (
	ErrStatsNotFound    = NewDomainError("learner", "GetStats", ErrNotFound, "learner stats not found")
	ErrInvalidLearnerID = NewDomainError("learner", "Validate", ErrInvalidID, "invalid learner ID")
	ErrNegativeXP       = NewDomainError("learner", "Validate", ErrNegativeValue, "XP cannot be negative")

	ErrCompletionNotFound = NewDomainError("progress", "Get", ErrNotFound, "completion record not found")

	ErrCourseNotFound    = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrLessonNotFound    = NewDomainError("course", "FindLesson", ErrNotFound, "lesson not found")
	ErrInvalidCourseID   = NewDomainError("course", "Validate", ErrInvalidID, "invalid course ID")
	ErrInvalidLessonID   = NewDomainError("course", "Validate", ErrInvalidID, "invalid lesson ID")
	ErrLessonNotInCourse = NewDomainError("course", "Validate", ErrInvalidInput, "lesson does not belong to the course")

	ErrStoreUnavailable = NewDomainError("store", "Query", ErrServiceUnavailable, "storage backend is unavailable")
)

// IsNotFound reports whether err means the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err was caused by bad input rather than a
// failing dependency. HTTP maps these to 400.
func IsValidation(err error) bool {
	for _, kind := range []error{
		ErrValidation,
		ErrInvalidID,
		ErrInvalidInput,
		ErrNegativeValue,
		ErrValueOutOfRange,
		ErrInvalidFormat,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsPartialCompletion reports a durable completion whose downstream
// crediting has not finished yet.
func IsPartialCompletion(err error) bool {
	return errors.Is(err, ErrPartialCompletion)
}

// IsRetryable reports whether the operation can be retried with the same
// arguments. Safe because every crediting step is idempotent per lesson.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrPartialCompletion)
}
