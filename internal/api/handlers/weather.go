// Package handlers contains the HTTP handler implementations for the Atmos API.
//
// This file implements the weather endpoints:
//   - Current conditions (GET /weather)
//   - Daily forecast (GET /forecast)
//
// Both accept either ?city=<name> or ?lat=<lat>&lon=<lon>.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"atmos/internal/core"
	"atmos/internal/types"
	"atmos/internal/weather"
)

// WeatherService defines the service contract for the weather handler.
// Defined locally so the handler can be tested without upstream providers.
type WeatherService interface {
	GetCurrentWeather(ctx context.Context, q weather.LocationQuery) (*types.CurrentWeather, error)
	GetForecast(ctx context.Context, q weather.LocationQuery) (*types.ForecastResponse, error)
}

// WeatherHandler maps HTTP requests to WeatherService methods.
type WeatherHandler struct {
	service WeatherService
	logger  *slog.Logger
}

// NewWeatherHandler creates a new WeatherHandler with the provided dependencies.
func NewWeatherHandler(svc WeatherService, logger *slog.Logger) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes mounts the weather endpoints onto the router.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/weather", h.HandleGetWeather)
	r.Get("/forecast", h.HandleGetForecast)
}

// HandleGetWeather handles GET /weather.
func (h *WeatherHandler) HandleGetWeather(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.GetCurrentWeather(r.Context(), locationQuery(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, current)
}

// HandleGetForecast handles GET /forecast.
func (h *WeatherHandler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	forecast, err := h.service.GetForecast(r.Context(), locationQuery(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, forecast)
}

// locationQuery extracts the raw location parameters. Interpretation
// (which combination wins, parsing, range checks) belongs to the service.
func locationQuery(r *http.Request) weather.LocationQuery {
	q := r.URL.Query()
	return weather.LocationQuery{
		City: q.Get("city"),
		Lat:  q.Get("lat"),
		Lon:  q.Get("lon"),
	}
}
