package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable marks failures the caller may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConflict is returned when a concurrent attempt won the race for the same result.
	ErrConflict = errors.New("concurrent modification of result")
	// ErrForbidden is returned when the viewer may not see or change the record.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingFields builds a ValidationError naming each missing field.
func MissingFields(what string, fields []string) error {
	return &ValidationError{
		Message: fmt.Sprintf("missing %s: %s", what, strings.Join(fields, ", ")),
		Fields:  fields,
	}
}

// NotFoundError reports an absent contest, question, result or submission.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// PolicyReason is the machine-readable cause of a PolicyError.
type PolicyReason string

const (
	ReasonMonthlyLimit     PolicyReason = "monthly_limit"
	ReasonContestNotActive PolicyReason = "contest_not_active"
	ReasonWindowClosed     PolicyReason = "window_closed"
)

// PolicyError is a rejection by the submission policy, not a fault.
type PolicyError struct {
	Reason            PolicyReason
	Message           string
	CanResubmit       bool
	ExistingScore     *int
	NextAvailableDate *time.Time
}

func (e *PolicyError) Error() string {
	return e.Message
}

// Unavailable tags err as a retryable storage failure while keeping the cause.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// InternalError carries detail for the server log; callers only see an opaque message.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return "internal error"
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Detail is the message meant for logs only.
func (e *InternalError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
