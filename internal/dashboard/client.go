package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"atmos/internal/external"
	"atmos/internal/types"
)

// maxResponseBody bounds how much of an API response is decoded.
const maxResponseBody = 4 << 20 // 4 MB

// FetchError is a failed weather fetch. Message is what the dashboard shows.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weather fetch failed (%d): %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("weather fetch failed (%d): %s", e.Status, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to the Atmos API over the shared upstream client, so it gets
// the same User-Agent and request ID propagation as the server's own
// provider calls. Each endpoint has its own BaseClient and therefore its own
// circuit breaker: a run of forecast failures never blocks /weather.
type Client struct {
	weather  *external.BaseClient
	forecast *external.BaseClient
	baseURL  string
	logger   *slog.Logger
}

// NewClient creates a Client for the API at baseURL (for example
// "http://localhost:8080"). weather and forecast must be distinct clients.
func NewClient(weather, forecast *external.BaseClient, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		weather:  weather,
		forecast: forecast,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// Fetch issues GET /weather and then GET /forecast for q. A weather failure
// is returned as *FetchError. A forecast failure is logged and yields a nil
// forecast alongside the weather.
func (c *Client) Fetch(ctx context.Context, q Query) (*types.CurrentWeather, *types.ForecastResponse, error) {
	var current types.CurrentWeather
	if err := c.get(ctx, c.weather, "/weather", q, &current); err != nil {
		return nil, nil, err
	}

	var forecast types.ForecastResponse
	if err := c.get(ctx, c.forecast, "/forecast", q, &forecast); err != nil {
		c.logger.WarnContext(ctx, "forecast unavailable, showing current conditions only",
			"query", q.params(),
			"error", err,
		)
		return &current, nil, nil
	}
	return &current, &forecast, nil
}

// Search runs one complete fetch cycle for q against s: Start, the fetch,
// then Succeed or Fail. A blank city search leaves s untouched.
func (c *Client) Search(ctx context.Context, s State, q Query) State {
	next := Reduce(s, Start{Query: q})
	if !next.Loading() {
		return s
	}
	if !q.IsLocation() {
		q.City = next.City
	}

	current, forecast, err := c.Fetch(ctx, q)
	if err != nil {
		var fe *FetchError
		msg := ""
		if errors.As(err, &fe) {
			msg = fe.Message
		}
		return Reduce(next, Fail{Message: msg})
	}
	return Reduce(next, Succeed{Weather: current, Forecast: forecast})
}

func (c *Client) get(ctx context.Context, base *external.BaseClient, path string, q Query, dst any) error {
	values := url.Values{}
	for k, v := range q.params() {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+values.Encode(), nil)
	if err != nil {
		return &FetchError{Message: DefaultErrorMessage, Err: err}
	}

	resp, err := base.Do(req)
	if err != nil {
		return &FetchError{Status: statusOf(err), Message: DefaultErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &FetchError{Status: resp.StatusCode, Message: DefaultErrorMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return &FetchError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &FetchError{Status: resp.StatusCode, Message: DefaultErrorMessage, Err: fmt.Errorf("decoding %s response: %w", path, err)}
	}
	return nil
}

func statusOf(err error) int {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return 0
}
