// Package external provides the anti-corruption layer between the weather
// service and the third-party APIs it proxies (geocoding and weather data).
// All outbound HTTP calls are routed through the BaseClient, which enforces
// consistent behavior: circuit breaking, trace propagation, and error mapping.
//
// Upstream calls are never retried. A failed call is reported to the caller
// exactly once.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"atmos/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker guarding an upstream.
type BreakerSettings struct {
	// ConsecutiveFailures is the number of consecutive failed calls after
	// which the breaker opens.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a single
	// probe request through.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns sensible defaults for public weather APIs.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. Provider clients
// (Open-Meteo, OpenWeatherMap) embed BaseClient to inherit this behavior.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name and settings, and user agent string.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	settings BreakerSettings,
	userAgent string,
) *BaseClient {
	threshold := settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing or when sharing a breaker across clients.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// errUpstreamStatus marks a response the breaker should count as a failure
// while still handing it back to the caller.
type errUpstreamStatus struct {
	status int
}

func (e *errUpstreamStatus) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx and 429 count as failures)
//  4. Error mapping to types.AppError
//
// Every response the upstream actually produced is returned as-is, whatever
// its status; callers decide how to surface non-2xx codes. The caller is
// responsible for closing the response body.
//
// Transport failures and an open breaker are returned as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, &errUpstreamStatus{status: r.StatusCode}
		}
		return r, nil
	})

	var statusErr *errUpstreamStatus
	if errors.As(err, &statusErr) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

// mapError translates transport-level failures into domain-level AppErrors.
func (c *BaseClient) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewUpstreamError(
			types.ErrCodeUpstreamUnavailable,
			http.StatusServiceUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	// Network error, DNS failure, cancelled context, etc. The query string is
	// dropped from the reported URL because it may carry an API key.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			u.RawQuery = ""
			urlErr.URL = u.String()
		}
	}
	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"upstream request failed",
		err,
	)
}

// BreakerState reports the current state of the circuit breaker, used by the
// health endpoint.
func (c *BaseClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}
