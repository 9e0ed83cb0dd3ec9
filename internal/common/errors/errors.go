// Package errors provides the standardized error taxonomy for the onboarding lifecycle.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Lifecycle errors
const (
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeTokenNotFound      ErrorCode = "TOKEN_NOT_FOUND"
	ErrCodeTokenAlreadyUsed   ErrorCode = "TOKEN_ALREADY_USED"
	ErrCodeAlreadyProgressed  ErrorCode = "REQUEST_ALREADY_PROGRESSED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeIntegrationFailure ErrorCode = "INTEGRATION_ERROR"
)

// Infrastructure errors
const (
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeDatabase         ErrorCode = "DATABASE_ERROR"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// withMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) withMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidStateError is returned when a transition is attempted from the wrong status.
func NewInvalidStateError(requestID int64, current, action string) *StandardError {
	return newError(ErrCodeInvalidState,
		"Request is not in a valid status for this action",
		fmt.Sprintf("requestId: %d, status: %s, action: %s", requestID, current, action),
		false, nil).
		withMetadata("requestId", requestID).
		withMetadata("status", current)
}

// NewForbiddenError is returned when the actor lacks the role or ownership for an action.
func NewForbiddenError(action, details string) *StandardError {
	return newError(ErrCodeForbidden,
		"You are not allowed to perform this action",
		fmt.Sprintf("action: %s, %s", action, details),
		false, nil)
}

// NewTokenNotFoundError covers both unknown and expired tokens.
func NewTokenNotFoundError() *StandardError {
	return newError(ErrCodeTokenNotFound,
		"This link is invalid or has expired",
		"", false, nil)
}

// NewTokenAlreadyUsedError is returned when the token was already redeemed.
func NewTokenAlreadyUsedError() *StandardError {
	return newError(ErrCodeTokenAlreadyUsed,
		"This form has already been submitted",
		"", false, nil)
}

// NewAlreadyProgressedError is returned when the request moved past the candidate step.
// The caller holds only a token, so the request id and status stay in Metadata.
func NewAlreadyProgressedError(requestID int64, status string) *StandardError {
	return newError(ErrCodeAlreadyProgressed,
		"This form has already been submitted",
		"", false, nil).
		withMetadata("requestId", requestID).
		withMetadata("status", status)
}

// NewValidationError reports missing or malformed fields.
func NewValidationError(details string, fields map[string]string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Validation failed", details, false, nil)
	if len(fields) > 0 {
		e.withMetadata("fields", fields)
	}
	return e
}

// NewIntegrationError wraps an e-signature or email provider failure.
func NewIntegrationError(integration string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeIntegrationFailure,
		fmt.Sprintf("External service '%s' error", integration),
		details, true, err).
		withMetadata("integration", integration)
}

// NewResourceNotFoundError is returned for missing requests or users.
func NewResourceNotFoundError(resource string, id interface{}) *StandardError {
	return newError(ErrCodeResourceNotFound,
		fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("id: %v", id), false, nil)
}

// NewDatabaseError wraps a store failure.
func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabase,
		"Database operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err),
		true, err)
}

// NewRateLimitedError is returned by the candidate endpoint limiter.
func NewRateLimitedError() *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", "", true, nil)
}

// NewUnauthorizedError is returned when no actor can be resolved.
func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication required", details, false, nil)
}

// ==========================
// 3. Classification
// ==========================

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HTTPStatus maps an error code to the HTTP status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidState, ErrCodeAlreadyProgressed, ErrCodeTokenAlreadyUsed:
		return http.StatusConflict
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeTokenNotFound, ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeIntegrationFailure:
		return http.StatusBadGateway
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for metric labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeInvalidState || code == ErrCodeAlreadyProgressed:
		return "STATE"
	case code == ErrCodeForbidden || code == ErrCodeUnauthorized:
		return "AUTH"
	case strings.HasPrefix(codeStr, "TOKEN"):
		return "TOKEN"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case code == ErrCodeIntegrationFailure:
		return "INTEGRATION"
	case code == ErrCodeDatabase:
		return "DATABASE"
	default:
		return "OTHER"
	}
}
