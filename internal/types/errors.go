package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies an AppError. The prefix decides the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMissingLocation ErrorCode = "validation_missing_location"
	ErrCodeValidationInvalidLat      ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon      ErrorCode = "validation_invalid_longitude"

	// Not Found (404)
	ErrCodeNotFoundCity ErrorCode = "not_found_city"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalMalformed   ErrorCode = "internal_malformed_upstream_payload"
	ErrCodeUpstreamWeather     ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamGeocoding   ErrorCode = "upstream_geocoding_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// Public error messages returned to API clients.
const (
	MsgMissingLocation     = "Please provide either city name or coordinates"
	MsgCityNotFound        = "City not found"
	MsgWeatherFetchFailed  = "Failed to fetch weather data"
	MsgForecastFetchFailed = "Failed to fetch forecast data"
)

// HTTPStatus maps the code's prefix to a status; unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is what providers, the weather service and handlers pass around.
// Message is safe to show to API clients; Err is for logs only.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// Status overrides the code-derived HTTP status. Upstream failures use it
	// to propagate the provider's own status code to the caller.
	Status int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error. An explicit Status
// takes precedence over the code mapping.
func (e *AppError) HTTPStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return e.Code.HTTPStatus()
}

// WithMessage returns a copy of the error with the public message replaced.
// The code, status and wrapped error are preserved.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
		Status:  e.Status,
	}
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewUpstreamError creates an AppError that carries the upstream provider's
// HTTP status so it can be propagated verbatim to the client.
func NewUpstreamError(code ErrorCode, status int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Status:  status,
	}
}
