package types

// The normalized weather contract. Field names and nesting follow the
// OpenWeatherMap response layout so that any upstream provider can be
// reshaped into it and the dashboard never needs to know which one was used.

// Condition describes a weather state: category, human description and icon.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// GeoPoint is the single best match returned by the geocoder.
type GeoPoint struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
}

// SunInfo carries the location's country code and today's sunrise/sunset.
type SunInfo struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// CurrentMain holds the scalar current-conditions readings.
type CurrentMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

// Wind holds speed in meters per second and direction in degrees.
type Wind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

// Clouds holds cloud cover in percent.
type Clouds struct {
	All int `json:"all"`
}

// CurrentWeather is the normalized current-conditions record.
type CurrentWeather struct {
	Name    string      `json:"name"`
	Sys     SunInfo     `json:"sys"`
	Main    CurrentMain `json:"main"`
	Weather []Condition `json:"weather"`
	Wind    Wind        `json:"wind"`
	Clouds  Clouds      `json:"clouds"`
	Dt      int64       `json:"dt"`
}

// Condition returns the primary weather condition, or the zero value when
// none is present.
func (w *CurrentWeather) Condition() Condition {
	if w == nil || len(w.Weather) == 0 {
		return Condition{}
	}
	return w.Weather[0]
}

// ForecastMain holds the temperature readings of a forecast entry.
type ForecastMain struct {
	Temp    float64 `json:"temp"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

// ForecastEntry is one normalized forecast data point. DtTxt is formatted
// as "YYYY-MM-DD HH:MM:SS"; daily providers pin the time to midday.
type ForecastEntry struct {
	Dt      int64        `json:"dt"`
	Main    ForecastMain `json:"main"`
	Weather []Condition  `json:"weather"`
	DtTxt   string       `json:"dt_txt"`
}

// Condition returns the primary weather condition of the entry.
func (e ForecastEntry) Condition() Condition {
	if len(e.Weather) == 0 {
		return Condition{}
	}
	return e.Weather[0]
}

// ForecastResponse is the body of the forecast endpoint.
type ForecastResponse struct {
	List []ForecastEntry `json:"list"`
}
