// Package weather implements the weather service behind GET /weather and
// GET /forecast. It owns the location resolution policy (coordinates versus
// city name) and normalizes every failure into the two public messages the
// API exposes, keeping upstream detail in the logs.
package weather

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"atmos/internal/external"
	"atmos/internal/types"
)

// UnknownLocation is the display name used when neither the geocoder, the
// caller nor the provider supplies one.
const UnknownLocation = "Unknown"

// LocationQuery carries the raw query parameters of a weather request.
// Lat and Lon are kept as strings so that "absent" and "unparseable" can be
// told apart.
type LocationQuery struct {
	City string
	Lat  string
	Lon  string
}

// coordinates is the validated form of a coordinate pair.
type coordinates struct {
	Lat float64 `validate:"latitude"`
	Lon float64 `validate:"longitude"`
}

// location is the resolved target of a request.
type location struct {
	coordinates
	Name    string
	Country string
}

// Service resolves locations and fetches normalized weather.
type Service struct {
	geocoder external.Geocoder
	provider external.WeatherProvider
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a Service backed by the given geocoder and provider.
func NewService(geocoder external.Geocoder, provider external.WeatherProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		geocoder: geocoder,
		provider: provider,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetCurrentWeather returns current conditions for the queried location.
func (s *Service) GetCurrentWeather(ctx context.Context, q LocationQuery) (*types.CurrentWeather, error) {
	loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, s.normalize(ctx, err, types.MsgWeatherFetchFailed, "weather")
	}

	current, err := s.provider.Current(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, s.normalize(ctx, err, types.MsgWeatherFetchFailed, "weather")
	}

	current.Name = firstNonEmpty(loc.Name, strings.TrimSpace(q.City), current.Name, UnknownLocation)
	current.Sys.Country = strings.ToUpper(firstNonEmpty(loc.Country, current.Sys.Country))
	return current, nil
}

// GetForecast returns the forecast entries for the queried location.
func (s *Service) GetForecast(ctx context.Context, q LocationQuery) (*types.ForecastResponse, error) {
	loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, s.normalize(ctx, err, types.MsgForecastFetchFailed, "forecast")
	}

	entries, err := s.provider.Forecast(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, s.normalize(ctx, err, types.MsgForecastFetchFailed, "forecast")
	}
	if entries == nil {
		entries = []types.ForecastEntry{}
	}
	return &types.ForecastResponse{List: entries}, nil
}

// resolve applies the input policy: a complete coordinate pair wins, a city
// alone is geocoded, and anything else is rejected.
func (s *Service) resolve(ctx context.Context, q LocationQuery) (*location, error) {
	city := strings.TrimSpace(q.City)
	latRaw := strings.TrimSpace(q.Lat)
	lonRaw := strings.TrimSpace(q.Lon)

	switch {
	case latRaw != "" && lonRaw != "":
		c, err := s.parseCoordinates(latRaw, lonRaw)
		if err != nil {
			return nil, err
		}
		return &location{coordinates: *c}, nil

	case latRaw == "" && lonRaw == "" && city != "":
		point, err := s.geocoder.Resolve(ctx, city)
		if err != nil {
			return nil, err
		}
		return &location{
			coordinates: coordinates{Lat: point.Latitude, Lon: point.Longitude},
			Name:        point.Name,
			Country:     point.CountryCode,
		}, nil

	default:
		return nil, types.NewAppError(types.ErrCodeValidationMissingLocation, types.MsgMissingLocation, nil)
	}
}

func (s *Service) parseCoordinates(latRaw, lonRaw string) (*coordinates, error) {
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be a valid number", err)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be a valid number", err)
	}

	c := &coordinates{Lat: lat, Lon: lon}
	if err := s.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Lon" {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be between -180 and 180", err)
		}
		return nil, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be between -90 and 90", err)
	}
	return c, nil
}

// normalize maps err onto the public error for an endpoint. Input and
// not-found errors pass through unchanged; upstream failures keep their
// status but take the endpoint message; everything else becomes a 500.
func (s *Service) normalize(ctx context.Context, err error, publicMsg, endpoint string) error {
	logger := types.LoggerFromContext(ctx, s.logger)

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code := string(appErr.Code)
		switch {
		case strings.HasPrefix(code, "validation_"), strings.HasPrefix(code, "not_found_"):
			logger.InfoContext(ctx, "weather request rejected",
				"endpoint", endpoint,
				"code", appErr.Code,
				"error", appErr.Error(),
			)
			return appErr
		case strings.HasPrefix(code, "upstream_"):
			logger.WarnContext(ctx, "upstream request failed",
				"endpoint", endpoint,
				"provider", s.provider.Name(),
				"code", appErr.Code,
				"status", appErr.HTTPStatus(),
				"error", appErr.Error(),
			)
			return appErr.WithMessage(publicMsg)
		}
	}

	logger.ErrorContext(ctx, "weather request failed",
		"endpoint", endpoint,
		"provider", s.provider.Name(),
		"error", err,
	)
	return types.NewAppError(types.ErrCodeInternalUnexpected, publicMsg, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
