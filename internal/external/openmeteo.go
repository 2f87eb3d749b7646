package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"atmos/internal/types"
	"atmos/internal/weathercode"
)

// DefaultOpenMeteoURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// KphPerMeterPerSecond converts km/h to m/s: speed_ms = speed_kph / 3.6.
const KphPerMeterPerSecond = 3.6

// CurrentTempSpread approximates today's min/max around the current
// temperature, because the current-conditions payload carries no daily range.
const CurrentTempSpread = 2.0

// ForecastDays is the number of daily points requested from Open-Meteo.
const ForecastDays = 7

// MiddayMarker is appended to each daily date to build the dt_txt field.
const MiddayMarker = " 12:00:00"

const (
	openMeteoDateLayout     = "2006-01-02"
	openMeteoDateTimeLayout = "2006-01-02T15:04"
)

// OpenMeteoProvider implements WeatherProvider against the free Open-Meteo API.
type OpenMeteoProvider struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

var _ WeatherProvider = (*OpenMeteoProvider)(nil)

// OpenMeteoOption is a functional option for configuring an OpenMeteoProvider.
type OpenMeteoOption func(*OpenMeteoProvider)

// WithClock overrides the wall clock used to stamp observations.
func WithClock(now func() time.Time) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		p.now = now
	}
}

// NewOpenMeteoProvider creates the provider. An empty baseURL selects
// DefaultOpenMeteoURL.
func NewOpenMeteoProvider(base *BaseClient, baseURL string, logger *slog.Logger, opts ...OpenMeteoOption) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &OpenMeteoProvider{
		base:    base,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenMeteoProvider) Name() string {
	return ProviderOpenMeteo
}

// openMeteoCurrentResponse is the payload of the current-conditions query.
type openMeteoCurrentResponse struct {
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Timezone         string `json:"timezone"`
	Current          struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		ApparentTemp  float64 `json:"apparent_temperature"`
		WeatherCode   *int    `json:"weather_code"`
		Pressure      float64 `json:"surface_pressure"`
		WindSpeedKph  float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// openMeteoForecastResponse is the payload of the daily forecast query.
type openMeteoForecastResponse struct {
	Daily struct {
		Time        []string  `json:"time"`
		WeatherCode []*int    `json:"weather_code"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// Current fetches current conditions and today's sunrise/sunset in a single call.
func (p *OpenMeteoProvider) Current(ctx context.Context, lat, lon float64) (*types.CurrentWeather, error) {
	q := coordinateQuery(lat, lon)
	q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,surface_pressure,wind_speed_10m,wind_direction_10m")
	q.Set("daily", "sunrise,sunset")
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")

	var payload openMeteoCurrentResponse
	if err := getJSON(ctx, p.base, p.baseURL+"?"+q.Encode(), types.ErrCodeUpstreamWeather, &payload); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "open-meteo current conditions fetched",
		"lat", lat, "lon", lon, "timezone", payload.Timezone)

	return reshapeCurrent(payload, p.now())
}

// Forecast fetches ForecastDays daily points.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, lat, lon float64) ([]types.ForecastEntry, error) {
	q := coordinateQuery(lat, lon)
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(ForecastDays))

	var payload openMeteoForecastResponse
	if err := getJSON(ctx, p.base, p.baseURL+"?"+q.Encode(), types.ErrCodeUpstreamWeather, &payload); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "open-meteo forecast fetched",
		"lat", lat, "lon", lon, "days", len(payload.Daily.Time))

	return reshapeForecast(payload)
}

func coordinateQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("latitude", formatCoordinate(lat))
	q.Set("longitude", formatCoordinate(lon))
	return q
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// KphToMetersPerSecond converts a wind speed from km/h to m/s.
func KphToMetersPerSecond(kph float64) float64 {
	return kph / KphPerMeterPerSecond
}

// describeCode translates an upstream weather code. Open-Meteo sends null
// for hours it has no code for; that reads as Unknown, not as code 0.
func describeCode(code *int) types.Condition {
	if code == nil {
		return weathercode.Describe(-1)
	}
	return weathercode.Describe(*code)
}

// reshapeCurrent maps the Open-Meteo current payload onto the normalized
// record. observedAt stamps the record because the payload has no usable
// observation timestamp. Cloud cover is not requested and always reported as 0.
func reshapeCurrent(payload openMeteoCurrentResponse, observedAt time.Time) (*types.CurrentWeather, error) {
	if len(payload.Daily.Sunrise) == 0 || len(payload.Daily.Sunset) == 0 {
		return nil, types.NewAppError(types.ErrCodeInternalMalformed, "daily sunrise/sunset missing from upstream payload", nil)
	}

	loc := time.FixedZone(payload.Timezone, payload.UTCOffsetSeconds)
	sunrise, err := time.ParseInLocation(openMeteoDateTimeLayout, payload.Daily.Sunrise[0], loc)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalMalformed, "invalid sunrise timestamp", err)
	}
	sunset, err := time.ParseInLocation(openMeteoDateTimeLayout, payload.Daily.Sunset[0], loc)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalMalformed, "invalid sunset timestamp", err)
	}

	cur := payload.Current
	return &types.CurrentWeather{
		Sys: types.SunInfo{
			Sunrise: sunrise.Unix(),
			Sunset:  sunset.Unix(),
		},
		Main: types.CurrentMain{
			Temp:      cur.Temperature,
			FeelsLike: cur.ApparentTemp,
			TempMin:   cur.Temperature - CurrentTempSpread,
			TempMax:   cur.Temperature + CurrentTempSpread,
			Pressure:  cur.Pressure,
			Humidity:  cur.Humidity,
		},
		Weather: []types.Condition{describeCode(cur.WeatherCode)},
		Wind: types.Wind{
			Speed: KphToMetersPerSecond(cur.WindSpeedKph),
			Deg:   cur.WindDirection,
		},
		Clouds: types.Clouds{All: 0},
		Dt:     observedAt.Unix(),
	}, nil
}

// reshapeForecast maps each daily point, in upstream order, onto a forecast
// entry. The entry count always equals the number of days returned.
func reshapeForecast(payload openMeteoForecastResponse) ([]types.ForecastEntry, error) {
	d := payload.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.TempMax) != n || len(d.TempMin) != n {
		return nil, types.NewAppError(
			types.ErrCodeInternalMalformed,
			fmt.Sprintf("daily arrays have mismatched lengths (time=%d code=%d max=%d min=%d)",
				n, len(d.WeatherCode), len(d.TempMax), len(d.TempMin)),
			nil,
		)
	}

	entries := make([]types.ForecastEntry, 0, n)
	for i, date := range d.Time {
		day, err := time.ParseInLocation(openMeteoDateLayout, date, time.UTC)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalMalformed, "invalid forecast date", err)
		}

		entries = append(entries, types.ForecastEntry{
			Dt: day.Unix(),
			Main: types.ForecastMain{
				Temp:    (d.TempMax[i] + d.TempMin[i]) / 2,
				TempMin: d.TempMin[i],
				TempMax: d.TempMax[i],
			},
			Weather: []types.Condition{describeCode(d.WeatherCode[i])},
			DtTxt:   date + MiddayMarker,
		})
	}
	return entries, nil
}
