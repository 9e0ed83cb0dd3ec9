package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf_WrappedErrors(t *testing.T) {
	base := NewInvalidStateError(7, "WAITING_FOR_HR", "approve")
	wrapped := fmt.Errorf("approve request 7: %w", base)

	assert.Equal(t, ErrCodeInvalidState, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeInvalidState))
	assert.False(t, HasCode(wrapped, ErrCodeForbidden))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestIntegrationError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewIntegrationError("pandadoc", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
	assert.Equal(t, "pandadoc", err.Metadata["integration"])
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNormalize(t *testing.T) {
	std := NewForbiddenError("approve", "not owner")
	assert.Same(t, std, Normalize(std))

	n := Normalize(stderrors.New("unexpected"))
	require.NotNil(t, n)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "unexpected", n.Details)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidState, http.StatusConflict},
		{ErrCodeTokenAlreadyUsed, http.StatusConflict},
		{ErrCodeAlreadyProgressed, http.StatusConflict},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeTokenNotFound, http.StatusNotFound},
		{ErrCodeValidationFailed, http.StatusUnprocessableEntity},
		{ErrCodeIntegrationFailure, http.StatusBadGateway},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeDatabase, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestTokenErrorsAreDistinct(t *testing.T) {
	notFound := NewTokenNotFoundError()
	used := NewTokenAlreadyUsedError()

	assert.NotEqual(t, notFound.Code, used.Code)
	assert.NotEqual(t, notFound.Message, used.Message)
	assert.Equal(t, "TOKEN", GetErrorCategory(notFound.Code))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeAlreadyProgressed))
}

func TestAlreadyProgressedKeepsRequestStateInMetadata(t *testing.T) {
	err := NewAlreadyProgressedError(42, "WAITING_FOR_HR")

	assert.Empty(t, err.Details)
	assert.EqualValues(t, 42, err.Metadata["requestId"])
	assert.Equal(t, "WAITING_FOR_HR", err.Metadata["status"])
}
