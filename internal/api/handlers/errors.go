package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// apiError is the error body for every non-2xx response: {"error": "..."}.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) Error() string { return e.Message }

func (e *apiError) GetStatus() int { return e.status }

// Error builds a response error with the given status and message.
func Error(status int, message string) error {
	return &apiError{status: status, Message: message}
}

// BadRequest builds a 400 response error.
func BadRequest(message string) error {
	return Error(http.StatusBadRequest, message)
}

// Internal builds a 500 response error.
func Internal(message string) error {
	return Error(http.StatusInternalServerError, message)
}

// InstallErrorModel replaces huma's default RFC 7807 error body with the
// flat {"error": "..."} shape. Must be called before registering
// operations.
func InstallErrorModel() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		if message == "" && len(errs) > 0 {
			message = errs[0].Error()
		}
		return &apiError{status: status, Message: message}
	}
}
