// Package config defines the global configuration structure for the Atmos
// weather service. Configuration is loaded once at process initialization
// (including a Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup.
package config

import (
	"time"

	"atmos/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Upstream      UpstreamConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
}

// UpstreamConfig selects the weather provider and points it at its API.
type UpstreamConfig struct {
	Provider string `envconfig:"WEATHER_PROVIDER" default:"open-meteo" validate:"required,oneof=open-meteo openweathermap"`

	OpenMeteoForecastURL  string `envconfig:"OPEN_METEO_FORECAST_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	OpenMeteoGeocodingURL string `envconfig:"OPEN_METEO_GEOCODING_URL" default:"https://geocoding-api.open-meteo.com/v1/search" validate:"required,url"`

	OpenWeatherMapURL    string       `envconfig:"OPENWEATHERMAP_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	OpenWeatherMapAPIKey SecretString `envconfig:"OPENWEATHERMAP_API_KEY" validate:"required_if=Provider openweathermap"`

	// Timeout bounds a single upstream call. Zero means no timeout.
	Timeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"0s"`
	UserAgent string        `envconfig:"UPSTREAM_USER_AGENT" default:"Atmos/1.0"`
}

// AWSConfig holds AWS regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Atmos"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
