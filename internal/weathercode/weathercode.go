// Package weathercode translates WMO weather interpretation codes, as
// reported by Open-Meteo, into the condition triple used by the normalized
// weather contract (category, description, icon id).
package weathercode

import "atmos/internal/types"

type descriptor struct {
	main        string
	description string
	icon        string
}

// unknown is returned for every code outside the table.
var unknown = descriptor{main: "Unknown", description: "unknown", icon: "01d"}

var codes = map[int]descriptor{
	0:  {"Clear", "clear sky", "01d"},
	1:  {"Clear", "mainly clear", "01d"},
	2:  {"Clouds", "partly cloudy", "02d"},
	3:  {"Clouds", "overcast", "03d"},
	45: {"Fog", "fog", "50d"},
	48: {"Fog", "depositing rime fog", "50d"},
	51: {"Drizzle", "light drizzle", "09d"},
	53: {"Drizzle", "moderate drizzle", "09d"},
	55: {"Drizzle", "dense drizzle", "09d"},
	61: {"Rain", "slight rain", "10d"},
	63: {"Rain", "moderate rain", "10d"},
	65: {"Rain", "heavy rain", "10d"},
	71: {"Snow", "slight snow", "13d"},
	73: {"Snow", "moderate snow", "13d"},
	75: {"Snow", "heavy snow", "13d"},
	77: {"Snow", "snow grains", "13d"},
	80: {"Rain", "slight rain showers", "09d"},
	81: {"Rain", "moderate rain showers", "09d"},
	82: {"Rain", "violent rain showers", "09d"},
	85: {"Snow", "slight snow showers", "13d"},
	86: {"Snow", "heavy snow showers", "13d"},
	95: {"Thunderstorm", "thunderstorm", "11d"},
	96: {"Thunderstorm", "thunderstorm with slight hail", "11d"},
	99: {"Thunderstorm", "thunderstorm with heavy hail", "11d"},
}

// Describe returns the condition for a weather code. It never fails: codes
// outside the table yield the Unknown sentinel. The returned ID is always
// the code that was asked for.
func Describe(code int) types.Condition {
	d, ok := codes[code]
	if !ok {
		d = unknown
	}
	return types.Condition{
		ID:          code,
		Main:        d.main,
		Description: d.description,
		Icon:        d.icon,
	}
}

// Known reports whether code has an entry in the table.
func Known(code int) bool {
	_, ok := codes[code]
	return ok
}
