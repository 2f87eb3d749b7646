package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"atmos/internal/external"
	"atmos/internal/types"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

var owmKeyPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Validator checks bootstrap inputs. The OpenWeatherMap key is verified live
// with a single current-conditions request for London.
type Validator struct {
	OpenWeatherMapURL string
	HTTPClient        *http.Client

	validate *validator.Validate
}

// NewValidator creates a Validator against the public OpenWeatherMap API.
func NewValidator() *Validator {
	return &Validator{
		OpenWeatherMapURL: external.DefaultOpenWeatherMapURL,
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		validate:          validator.New(),
	}
}

// ValidateProvider accepts the provider names the API understands.
func (v *Validator) ValidateProvider(_ context.Context, input string) ValidationResult {
	if err := v.validate.Var(input, "oneof="+external.ProviderOpenMeteo+" "+external.ProviderOpenWeatherMap); err != nil {
		return ValidationResult{Message: fmt.Sprintf("must be %q or %q", external.ProviderOpenMeteo, external.ProviderOpenWeatherMap)}
	}
	return ValidationResult{Valid: true, Message: "provider " + input}
}

// ValidateOrigins accepts "*" or a comma-separated list of absolute URLs.
func (v *Validator) ValidateOrigins(_ context.Context, input string) ValidationResult {
	if input == "*" {
		return ValidationResult{Valid: true, Message: "all origins allowed"}
	}
	origins := strings.Split(input, ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if err := v.validate.Var(o, "required,http_url"); err != nil {
			return ValidationResult{Message: fmt.Sprintf("%q is not an http(s) origin", o)}
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%d origin(s)", len(origins))}
}

// ValidateOpenWeatherMapKey checks the key format and then asks the API
// whether it accepts the key.
func (v *Validator) ValidateOpenWeatherMapKey(ctx context.Context, input string) ValidationResult {
	if !owmKeyPattern.MatchString(input) {
		return ValidationResult{Message: "expected 32 lowercase hex characters"}
	}

	base := external.NewBaseClient(v.HTTPClient, "bootstrap-openweathermap", external.DefaultBreakerSettings(), "Atmos-Bootstrap/1.0")
	provider := external.NewOpenWeatherMapProvider(base, v.OpenWeatherMapURL, types.SecretString(input), nil)

	current, err := provider.Current(ctx, 51.5074, -0.1278)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Status == http.StatusUnauthorized {
			return ValidationResult{Message: "OpenWeatherMap rejected the key (new keys can take a few hours to activate)"}
		}
		return ValidationResult{Message: fmt.Sprintf("could not verify key: %v", err)}
	}
	return ValidationResult{Valid: true, Message: "key accepted, test lookup returned " + current.Name}
}
