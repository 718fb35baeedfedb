package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvalid              ErrorCode = "INVALID"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeCycleDetected        ErrorCode = "CYCLE_DETECTED"
	ErrCodeUnknownTemplate      ErrorCode = "UNKNOWN_TEMPLATE"
	ErrCodeTransientPersistence ErrorCode = "TRANSIENT_PERSISTENCE"
	ErrCodeInternal             ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinel errors by code and message so wrapped copies still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrBusinessIDRequired   = NewError(ErrCodeInvalid, "business id is required")
	ErrCountryRequired      = NewError(ErrCodeInvalid, "country is required")
	ErrMarketRequired       = NewError(ErrCodeInvalid, "market is required")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")
	ErrEventTypeRequired    = NewError(ErrCodeInvalid, "event type is required")
	ErrInvalidTaskStatus    = NewError(ErrCodeInvalid, "invalid task status")
	ErrTitleRequired        = NewError(ErrCodeInvalid, "notification title is required")
	ErrUnknownPrerequisite  = NewError(ErrCodeInvalid, "requirement references an unknown prerequisite")
	ErrDuplicateRequirement = NewError(ErrCodeInvalid, "duplicate requirement id")
	ErrActionRequired       = NewError(ErrCodeInvalid, "action is required")
	ErrTimelineNotFound     = NewError(ErrCodeNotFound, "timeline not found")
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrNotificationNotFound = NewError(ErrCodeNotFound, "notification not found")
	ErrMarketNotFound       = NewError(ErrCodeNotFound, "market not found")
	ErrCertificationMissing = NewError(ErrCodeNotFound, "certification not found")
	ErrUnknownStateField    = NewError(ErrCodeInvalid, "unknown business state field")
	ErrDocumentNotFound     = NewError(ErrCodeNotFound, "document not found")
	ErrDuplicateKey         = NewError(ErrCodeConflict, "duplicate document key")
	ErrVersionConflict      = NewError(ErrCodeConflict, "concurrent modification detected")
	ErrInvalidTransition    = NewError(ErrCodeConflict, "invalid status transition")
	ErrUnknownTemplate      = NewError(ErrCodeUnknownTemplate, "unknown notification template")
	ErrCycleDetected        = NewError(ErrCodeCycleDetected, "requirement dependency cycle detected")
)

// CycleDetected reports the dependency path that closes a cycle, e.g. [a b a].
func CycleDetected(path []string) error {
	return WrapError(ErrCodeCycleDetected, ErrCycleDetected.Message,
		fmt.Errorf("cycle: %s", strings.Join(path, " -> ")))
}

// UnknownTemplate reports a notify call for a template type nobody registered.
func UnknownTemplate(templateType string) error {
	return WrapError(ErrCodeUnknownTemplate, ErrUnknownTemplate.Message,
		fmt.Errorf("template %q is not registered", templateType))
}

// InvalidTransition reports a status change the state machine does not allow.
func InvalidTransition(from, to string) error {
	return WrapError(ErrCodeConflict, ErrInvalidTransition.Message,
		fmt.Errorf("%s -> %s", from, to))
}

// TransientPersistence classifies a storage failure that the caller may retry.
func TransientPersistence(message string, err error) error {
	return WrapError(ErrCodeTransientPersistence, message, err)
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
