package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"atmos/internal/types"
)

// genericErrorMessage is returned for errors that carry no public message.
const genericErrorMessage = "an unexpected error occurred"

// ErrorResponse is the body of every error response. The request ID is not
// part of it; clients correlate through the X-Request-Id header.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "failed to marshal response"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its HTTPStatus and public
//     Message are used.
//   - Any other error becomes a 500 with a generic message.
//
// Wrapped error details are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if msg == "" {
			msg = genericErrorMessage
		}
		JSON(w, r, appErr.HTTPStatus(), ErrorResponse{Error: msg})
		return
	}

	JSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: genericErrorMessage})
}
