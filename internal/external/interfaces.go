package external

import (
	"context"

	"atmos/internal/types"
)

// ---------------------------------------------------------------------------
// Geocoding
// ---------------------------------------------------------------------------

// Geocoder resolves a free-text place name to a single best-match location.
// The provider's own ranking is trusted; no disambiguation is attempted.
type Geocoder interface {
	// Resolve returns the first match for name. When the provider returns no
	// match, it returns an AppError with code not_found_city and the message
	// "City not found".
	Resolve(ctx context.Context, name string) (*types.GeoPoint, error)
}

// ---------------------------------------------------------------------------
// Weather Data
// ---------------------------------------------------------------------------

// WeatherProvider fetches weather for a coordinate pair and reshapes it into
// the normalized contract. Implementations own the reshaping rules for their
// upstream's payload; callers never see provider-specific shapes.
type WeatherProvider interface {
	// Name identifies the provider in logs, metrics and health output.
	Name() string

	// Current returns current conditions plus today's sunrise and sunset.
	// Name and Sys.Country may be left empty when the upstream does not
	// report them; the caller fills them from the geocoder.
	Current(ctx context.Context, lat, lon float64) (*types.CurrentWeather, error)

	// Forecast returns forecast entries in the upstream's chronological order.
	Forecast(ctx context.Context, lat, lon float64) ([]types.ForecastEntry, error)
}

// Provider names accepted by the registry.
const (
	ProviderOpenMeteo      = "open-meteo"
	ProviderOpenWeatherMap = "openweathermap"
)
