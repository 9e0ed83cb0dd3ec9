package api

import (
	"net/http"

	apperrors "hire-onboarding/internal/common/errors"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
	Fields  interface{}         `json:"fields,omitempty"`
}

// writeError answers with {"error": {...}} and the status mapped from the error code.
func writeError(c *gin.Context, err error) {
	se := apperrors.Normalize(err)
	body := errorBody{Code: se.Code, Message: se.Message, Details: se.Details}
	if fields, ok := se.Metadata["fields"]; ok {
		body.Fields = fields
	}
	status := apperrors.HTTPStatus(se.Code)
	if status >= http.StatusInternalServerError {
		// internal details stay in the logs
		body.Details = ""
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, apperrors.NewValidationError("malformed request body: "+err.Error(), nil))
}
