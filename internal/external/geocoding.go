package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"atmos/internal/types"
)

// DefaultGeocodingURL is the Open-Meteo geocoding search endpoint.
const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// maxUpstreamBody bounds how much of an upstream payload is decoded.
const maxUpstreamBody = 4 << 20 // 4 MB

// OpenMeteoGeocoder implements Geocoder against the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

var _ Geocoder = (*OpenMeteoGeocoder)(nil)

// NewOpenMeteoGeocoder creates a geocoder. An empty baseURL selects
// DefaultGeocodingURL.
func NewOpenMeteoGeocoder(base *BaseClient, baseURL string, logger *slog.Logger) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoGeocoder{
		base:    base,
		baseURL: baseURL,
		logger:  logger,
	}
}

// geocodingResponse mirrors the subset of the Open-Meteo search payload we use.
type geocodingResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		CountryCode string  `json:"country_code"`
		Country     string  `json:"country"`
	} `json:"results"`
}

// Resolve requests at most one English-language match for name.
func (g *OpenMeteoGeocoder) Resolve(ctx context.Context, name string) (*types.GeoPoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingLocation,
			types.MsgMissingLocation,
			nil,
		)
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var payload geocodingResponse
	if err := getJSON(ctx, g.base, g.baseURL+"?"+q.Encode(), types.ErrCodeUpstreamGeocoding, &payload); err != nil {
		return nil, err
	}

	if len(payload.Results) == 0 {
		g.logger.DebugContext(ctx, "geocoding returned no match", "name", name)
		return nil, types.NewAppError(types.ErrCodeNotFoundCity, types.MsgCityNotFound, nil)
	}

	first := payload.Results[0]
	country := first.CountryCode
	if country == "" {
		country = first.Country
	}

	return &types.GeoPoint{
		Latitude:    first.Latitude,
		Longitude:   first.Longitude,
		Name:        first.Name,
		CountryCode: strings.ToUpper(country),
	}, nil
}

// getJSON issues a GET through the base client and decodes a 2xx JSON body
// into dst. Non-2xx responses become upstream errors carrying the provider's
// status; their bodies are discarded unread.
func getJSON(ctx context.Context, base *BaseClient, rawURL string, upstreamCode types.ErrorCode, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build upstream request", err)
	}

	resp, err := base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUpstreamBody))
		code := upstreamCode
		if resp.StatusCode == http.StatusTooManyRequests {
			code = types.ErrCodeUpstreamRateLimited
		}
		return types.NewUpstreamError(
			code,
			resp.StatusCode,
			fmt.Sprintf("upstream returned %d", resp.StatusCode),
			nil,
		)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUpstreamBody)).Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeInternalMalformed, "failed to decode upstream response", err)
	}
	return nil
}
