package external

import (
	"context"
	"log/slog"
	"net/url"

	"atmos/internal/types"
)

// DefaultOpenWeatherMapURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherMapProvider implements WeatherProvider against the commercial
// OpenWeatherMap API. Its payloads already use the normalized layout, so the
// reshaping is mostly a copy; the forecast is returned in 3-hour steps.
type OpenWeatherMapProvider struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

var _ WeatherProvider = (*OpenWeatherMapProvider)(nil)

// NewOpenWeatherMapProvider creates the provider. An empty baseURL selects
// DefaultOpenWeatherMapURL.
func NewOpenWeatherMapProvider(base *BaseClient, baseURL string, apiKey types.SecretString, logger *slog.Logger) *OpenWeatherMapProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherMapURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenWeatherMapProvider{
		base:    base,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Name returns the provider identifier.
func (p *OpenWeatherMapProvider) Name() string {
	return ProviderOpenWeatherMap
}

type owmCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrentResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []owmCondition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

type owmForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp    float64 `json:"temp"`
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []owmCondition `json:"weather"`
		DtTxt   string         `json:"dt_txt"`
	} `json:"list"`
}

func (p *OpenWeatherMapProvider) query(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("lat", formatCoordinate(lat))
	q.Set("lon", formatCoordinate(lon))
	q.Set("units", "metric")
	q.Set("appid", p.apiKey.Unmask())
	return q
}

// Current fetches /weather. Wind speed is already in m/s with metric units.
// Cloud cover is reported as 0 so that every provider yields the same contract.
func (p *OpenWeatherMapProvider) Current(ctx context.Context, lat, lon float64) (*types.CurrentWeather, error) {
	var payload owmCurrentResponse
	if err := getJSON(ctx, p.base, p.baseURL+"/weather?"+p.query(lat, lon).Encode(), types.ErrCodeUpstreamWeather, &payload); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "openweathermap current conditions fetched", "lat", lat, "lon", lon)

	return &types.CurrentWeather{
		Name: payload.Name,
		Sys: types.SunInfo{
			Country: payload.Sys.Country,
			Sunrise: payload.Sys.Sunrise,
			Sunset:  payload.Sys.Sunset,
		},
		Main: types.CurrentMain{
			Temp:      payload.Main.Temp,
			FeelsLike: payload.Main.FeelsLike,
			TempMin:   payload.Main.TempMin,
			TempMax:   payload.Main.TempMax,
			Pressure:  payload.Main.Pressure,
			Humidity:  payload.Main.Humidity,
		},
		Weather: convertOWMConditions(payload.Weather),
		Wind: types.Wind{
			Speed: payload.Wind.Speed,
			Deg:   payload.Wind.Deg,
		},
		Clouds: types.Clouds{All: 0},
		Dt:     payload.Dt,
	}, nil
}

// Forecast fetches /forecast, which yields 3-hour entries over five days.
func (p *OpenWeatherMapProvider) Forecast(ctx context.Context, lat, lon float64) ([]types.ForecastEntry, error) {
	var payload owmForecastResponse
	if err := getJSON(ctx, p.base, p.baseURL+"/forecast?"+p.query(lat, lon).Encode(), types.ErrCodeUpstreamWeather, &payload); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "openweathermap forecast fetched", "lat", lat, "lon", lon, "entries", len(payload.List))

	entries := make([]types.ForecastEntry, 0, len(payload.List))
	for _, item := range payload.List {
		entries = append(entries, types.ForecastEntry{
			Dt: item.Dt,
			Main: types.ForecastMain{
				Temp:    item.Main.Temp,
				TempMin: item.Main.TempMin,
				TempMax: item.Main.TempMax,
			},
			Weather: convertOWMConditions(item.Weather),
			DtTxt:   item.DtTxt,
		})
	}
	return entries, nil
}

func convertOWMConditions(in []owmCondition) []types.Condition {
	out := make([]types.Condition, 0, len(in))
	for _, c := range in {
		out = append(out, types.Condition{
			ID:          c.ID,
			Main:        c.Main,
			Description: c.Description,
			Icon:        c.Icon,
		})
	}
	return out
}
