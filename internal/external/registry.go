package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"atmos/internal/config"

	"github.com/sony/gobreaker/v2"
)

// ---------------------------------------------------------------------------
// Provider Registry
//
// Central factory that instantiates the geocoder and the configured weather
// provider. Each upstream host gets its own BaseClient so that a failing
// geocoder cannot open the weather breaker, and vice versa.
// ---------------------------------------------------------------------------

// ProviderRegistry holds the upstream clients used by the weather service.
type ProviderRegistry struct {
	Geocoder Geocoder
	Weather  WeatherProvider

	geocodingBase *BaseClient
	weatherBase   *BaseClient
}

// NewProviderRegistry builds the geocoder and selects the weather provider
// named by cfg.Upstream.Provider. Unknown provider names are rejected.
//
// The http.Client timeout is taken from cfg.Upstream.Timeout; zero leaves
// upstream calls unbounded.
func NewProviderRegistry(cfg *config.Config, logger *slog.Logger) (*ProviderRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	up := cfg.Upstream

	httpClient := &http.Client{Timeout: up.Timeout}
	settings := DefaultBreakerSettings()

	reg := &ProviderRegistry{
		geocodingBase: NewBaseClient(httpClient, "geocoding", settings, up.UserAgent),
	}
	reg.Geocoder = NewOpenMeteoGeocoder(reg.geocodingBase, up.OpenMeteoGeocodingURL, logger.With("client", "geocoding"))

	switch up.Provider {
	case ProviderOpenMeteo, "":
		reg.weatherBase = NewBaseClient(httpClient, ProviderOpenMeteo, settings, up.UserAgent)
		reg.Weather = NewOpenMeteoProvider(reg.weatherBase, up.OpenMeteoForecastURL, logger.With("client", ProviderOpenMeteo))
	case ProviderOpenWeatherMap:
		if !up.OpenWeatherMapAPIKey.IsSet() {
			return nil, fmt.Errorf("provider %q requires OPENWEATHERMAP_API_KEY", up.Provider)
		}
		reg.weatherBase = NewBaseClient(httpClient, ProviderOpenWeatherMap, settings, up.UserAgent)
		reg.Weather = NewOpenWeatherMapProvider(reg.weatherBase, up.OpenWeatherMapURL, up.OpenWeatherMapAPIKey, logger.With("client", ProviderOpenWeatherMap))
	default:
		return nil, fmt.Errorf("unknown weather provider %q", up.Provider)
	}

	logger.Info("weather provider selected",
		"provider", reg.Weather.Name(),
		"upstream_timeout", up.Timeout,
	)
	return reg, nil
}

// Probes returns one health probe per upstream breaker.
func (r *ProviderRegistry) Probes() []*BreakerProbe {
	return []*BreakerProbe{
		NewBreakerProbe("geocoding", r.geocodingBase),
		NewBreakerProbe(r.Weather.Name(), r.weatherBase),
	}
}

// BreakerProbe reports an upstream as unhealthy while its circuit breaker is
// open. It never calls the upstream itself.
type BreakerProbe struct {
	name string
	base *BaseClient
}

// NewBreakerProbe creates a probe for base.
func NewBreakerProbe(name string, base *BaseClient) *BreakerProbe {
	return &BreakerProbe{name: name, base: base}
}

// Name returns the probe name.
func (p *BreakerProbe) Name() string {
	return p.name
}

// State returns the breaker state ("closed", "half-open" or "open").
func (p *BreakerProbe) State() string {
	return p.base.BreakerState().String()
}

// Check fails when the breaker is open.
func (p *BreakerProbe) Check(_ context.Context) error {
	if state := p.base.BreakerState(); state == gobreaker.StateOpen {
		return fmt.Errorf("circuit breaker %s", state)
	}
	return nil
}
