package external

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atmos/internal/types"
)

const openMeteoCurrentBody = `{
	"latitude": 51.5, "longitude": -0.12,
	"utc_offset_seconds": 3600,
	"timezone": "Europe/London",
	"current": {
		"time": "2024-06-01T12:00",
		"temperature_2m": 18.4,
		"relative_humidity_2m": 62,
		"apparent_temperature": 17.9,
		"weather_code": 3,
		"surface_pressure": 1012.3,
		"wind_speed_10m": 36,
		"wind_direction_10m": 240
	},
	"daily": {
		"time": ["2024-06-01"],
		"sunrise": ["2024-06-01T04:45"],
		"sunset": ["2024-06-01T21:10"]
	}
}`

const openMeteoForecastBody = `{
	"daily": {
		"time": ["2024-06-01","2024-06-02","2024-06-03","2024-06-04","2024-06-05","2024-06-06","2024-06-07"],
		"weather_code": [0, 3, 61, 95, 71, 45, 4],
		"temperature_2m_max": [20, 21, 19, 18, 5, 12, 15],
		"temperature_2m_min": [10, 12, 11, 9, -1, 8, 7]
	}
}`

func newTestOpenMeteo(t *testing.T, handler http.HandlerFunc, now time.Time) *OpenMeteoProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenMeteoProvider(newTestClient(t), server.URL+"/v1/forecast", nil,
		WithClock(func() time.Time { return now }))
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestOpenMeteoCurrent(t *testing.T) {
	now := time.Date(2024, 6, 1, 11, 30, 0, 0, time.UTC)
	var q map[string][]string
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Write([]byte(openMeteoCurrentBody))
	}, now)

	got, err := p.Current(context.Background(), 51.5, -0.12)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}

	if q["latitude"][0] != "51.5" || q["longitude"][0] != "-0.12" {
		t.Errorf("coordinates not forwarded: %v", q)
	}
	if q["daily"][0] != "sunrise,sunset" || q["timezone"][0] != "auto" {
		t.Errorf("unexpected query: %v", q)
	}

	if got.Main.Temp != 18.4 || got.Main.FeelsLike != 17.9 {
		t.Errorf("temperature not copied: %+v", got.Main)
	}
	if !approxEqual(got.Main.TempMin, 16.4) || !approxEqual(got.Main.TempMax, 20.4) {
		t.Errorf("temp range = [%v, %v], want [16.4, 20.4]", got.Main.TempMin, got.Main.TempMax)
	}
	if got.Main.Pressure != 1012.3 || got.Main.Humidity != 62 {
		t.Errorf("pressure/humidity not copied: %+v", got.Main)
	}
	kph := 36.0
	if got.Wind.Speed != kph/3.6 {
		t.Errorf("wind speed = %v, want exactly 36/3.6 m/s", got.Wind.Speed)
	}
	if got.Wind.Deg != 240 {
		t.Errorf("wind deg = %v, want 240", got.Wind.Deg)
	}
	if got.Clouds.All != 0 {
		t.Errorf("clouds.all = %d, want 0", got.Clouds.All)
	}
	if got.Dt != now.Unix() {
		t.Errorf("dt = %d, want injected clock %d", got.Dt, now.Unix())
	}

	wantCond := types.Condition{ID: 3, Main: "Clouds", Description: "overcast", Icon: "03d"}
	if len(got.Weather) != 1 || got.Weather[0] != wantCond {
		t.Errorf("weather = %+v, want [%+v]", got.Weather, wantCond)
	}

	// 04:45 at UTC+1 is 03:45 UTC.
	wantSunrise := time.Date(2024, 6, 1, 3, 45, 0, 0, time.UTC).Unix()
	wantSunset := time.Date(2024, 6, 1, 20, 10, 0, 0, time.UTC).Unix()
	if got.Sys.Sunrise != wantSunrise || got.Sys.Sunset != wantSunset {
		t.Errorf("sun = %d/%d, want %d/%d", got.Sys.Sunrise, got.Sys.Sunset, wantSunrise, wantSunset)
	}
	if got.Name != "" || got.Sys.Country != "" {
		t.Errorf("provider should leave name/country to the caller, got %q/%q", got.Name, got.Sys.Country)
	}
}

func TestOpenMeteoCurrent_UpstreamStatus(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":true,"reason":"Latitude must be in range"}`))
	}, time.Now())

	_, err := p.Current(context.Background(), 0, 0)
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamWeather || appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("got %s/%d, want %s/400", appErr.Code, appErr.HTTPStatus(), types.ErrCodeUpstreamWeather)
	}
}

func TestOpenMeteoForecast(t *testing.T) {
	var q map[string][]string
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Write([]byte(openMeteoForecastBody))
	}, time.Now())

	got, err := p.Forecast(context.Background(), 51.5, -0.12)
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	if q["forecast_days"][0] != "7" {
		t.Errorf("forecast_days = %v, want 7", q["forecast_days"])
	}
	if q["daily"][0] != "weather_code,temperature_2m_max,temperature_2m_min" {
		t.Errorf("daily = %v", q["daily"])
	}

	if len(got) != 7 {
		t.Fatalf("got %d entries, want 7", len(got))
	}

	first := got[0]
	if first.Dt != time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("dt = %d, want UTC midnight", first.Dt)
	}
	if first.DtTxt != "2024-06-01 12:00:00" {
		t.Errorf("dt_txt = %q", first.DtTxt)
	}
	if first.Main.Temp != 15 || first.Main.TempMin != 10 || first.Main.TempMax != 20 {
		t.Errorf("main = %+v, want temp 15 range [10,20]", first.Main)
	}

	// Order is preserved.
	for i := 1; i < len(got); i++ {
		if got[i].Dt <= got[i-1].Dt {
			t.Errorf("entry %d out of order", i)
		}
	}

	// Unmapped code 4 falls back to the Unknown sentinel.
	last := got[6].Condition()
	if last.Main != "Unknown" || last.Description != "unknown" || last.Icon != "01d" || last.ID != 4 {
		t.Errorf("unmapped code descriptor = %+v", last)
	}
}

func TestReshapeForecast_MismatchedLengths(t *testing.T) {
	var payload openMeteoForecastResponse
	payload.Daily.Time = []string{"2024-06-01", "2024-06-02"}
	payload.Daily.WeatherCode = []*int{nil}
	payload.Daily.TempMax = []float64{1, 2}
	payload.Daily.TempMin = []float64{0, 1}

	_, err := reshapeForecast(payload)
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeInternalMalformed {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeInternalMalformed)
	}
}

func TestReshapeForecast_Empty(t *testing.T) {
	got, err := reshapeForecast(openMeteoForecastResponse{})
	if err != nil {
		t.Fatalf("reshapeForecast returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
}

func TestReshapeCurrent_MissingSunTimes(t *testing.T) {
	_, err := reshapeCurrent(openMeteoCurrentResponse{}, time.Now())
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeInternalMalformed {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeInternalMalformed)
	}
}

func TestKphToMetersPerSecond(t *testing.T) {
	for _, kph := range []float64{0, 1, 3.6, 7, 12.3, 36, 100, 113.7} {
		want := kph / 3.6
		if got := KphToMetersPerSecond(kph); got != want {
			t.Errorf("KphToMetersPerSecond(%v) = %v, want exactly %v", kph, got, want)
		}
	}
	if got := KphToMetersPerSecond(36); got != 10 {
		t.Errorf("KphToMetersPerSecond(36) = %v, want 10", got)
	}
}

func TestReshape_NullWeatherCodeIsUnknown(t *testing.T) {
	var current openMeteoCurrentResponse
	body := `{"current":{"temperature_2m":10,"weather_code":null},
		"daily":{"sunrise":["2024-06-01T04:45"],"sunset":["2024-06-01T21:10"]}}`
	if err := json.Unmarshal([]byte(body), &current); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	got, err := reshapeCurrent(current, time.Now())
	if err != nil {
		t.Fatalf("reshapeCurrent returned error: %v", err)
	}
	if c := got.Weather[0]; c.Main != "Unknown" || c.Description != "unknown" || c.Icon != "01d" {
		t.Errorf("null current code = %+v, want Unknown", c)
	}

	var forecast openMeteoForecastResponse
	body = `{"daily":{"time":["2024-06-01","2024-06-02"],"weather_code":[null,0],
		"temperature_2m_max":[20,21],"temperature_2m_min":[10,11]}}`
	if err := json.Unmarshal([]byte(body), &forecast); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	days, err := reshapeForecast(forecast)
	if err != nil {
		t.Fatalf("reshapeForecast returned error: %v", err)
	}
	if c := days[0].Weather[0]; c.Main != "Unknown" {
		t.Errorf("null daily code = %+v, want Unknown", c)
	}
	if c := days[1].Weather[0]; c.Main != "Clear" || c.ID != 0 {
		t.Errorf("code 0 = %+v, want Clear", c)
	}
}
