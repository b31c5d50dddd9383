package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// Error codes returned in APIError.ErrorCode.
const (
	CodeBadRequest     = "bad_request"
	CodeMalformedTable = "malformed_table"
	CodeConfiguration  = "invalid_configuration"
	CodeInternal       = "internal_error"
)

// APIError is the JSON body of every non-2xx response except 422, which
// carries the ValidationResult itself.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Column     string `json:"column,omitempty"`
	Option     string `json:"option,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	e.RequestID = middleware.GetReqID(r.Context())
	render.Status(r, e.StatusCode)
	return nil
}

func badRequest(msg string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: CodeBadRequest, Message: msg}
}

// toAPIError maps pipeline errors: structural problems with the table or the
// options are the caller's fault (400), anything else is ours (500).
func toAPIError(err error) *APIError {
	var me *analysis.MalformedTableError
	var ce *analysis.ConfigurationError
	switch {
	case errors.As(err, &me):
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: CodeMalformedTable, Message: me.Error(), Column: me.Column}
	case errors.As(err, &ce):
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: CodeConfiguration, Message: ce.Error(), Option: ce.Option}
	}
	return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: CodeInternal, Message: err.Error()}
}
