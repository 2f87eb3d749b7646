package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"atmos/internal/types"
)

func TestJSON_Success(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusOK, map[string]string{"name": "London"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	if got := rec.Body.String(); got != `{"name":"London"}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("fallback body is not JSON: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected fallback error message")
	}
}

func TestError_AppErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing location",
			err:        types.NewAppError(types.ErrCodeValidationMissingLocation, types.MsgMissingLocation, nil),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Please provide either city name or coordinates"}`,
		},
		{
			name:       "city not found",
			err:        types.NewAppError(types.ErrCodeNotFoundCity, types.MsgCityNotFound, nil),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"City not found"}`,
		},
		{
			name:       "upstream status propagated",
			err:        types.NewUpstreamError(types.ErrCodeUpstreamWeather, http.StatusServiceUnavailable, types.MsgWeatherFetchFailed, nil),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"error":"Failed to fetch weather data"}`,
		},
		{
			name:       "internal detail hidden",
			err:        types.NewAppError(types.ErrCodeInternalUnexpected, types.MsgForecastFetchFailed, errors.New("dial tcp: refused")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to fetch forecast data"}`,
		},
		{
			name:       "wrapped app error",
			err:        fmt.Errorf("handler: %w", types.NewAppError(types.ErrCodeNotFoundCity, types.MsgCityNotFound, nil)),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"City not found"}`,
		},
		{
			name:       "empty message",
			err:        types.NewAppError(types.ErrCodeInternalUnexpected, "", nil),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"an unexpected error occurred"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/weather", nil)

			Error(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := rec.Body.String(); got != tc.wantBody {
				t.Errorf("body = %s, want %s", got, tc.wantBody)
			}
		})
	}
}

func TestError_GenericError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/weather", nil)

	Error(rec, req, errors.New("pq: connection refused to 10.0.0.1"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"error":"an unexpected error occurred"}` {
		t.Errorf("generic errors must not leak detail, got %s", got)
	}
}
