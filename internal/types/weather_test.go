package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWeather_WireFormat(t *testing.T) {
	w := CurrentWeather{
		Name: "London",
		Sys:  SunInfo{Country: "GB", Sunrise: 1700000000, Sunset: 1700030000},
		Main: CurrentMain{Temp: 10, FeelsLike: 8, TempMin: 8, TempMax: 12, Pressure: 1012, Humidity: 80},
		Weather: []Condition{
			{ID: 3, Main: "Clouds", Description: "overcast", Icon: "03d"},
		},
		Wind:   Wind{Speed: 5, Deg: 270},
		Clouds: Clouds{All: 0},
		Dt:     1700010000,
	}

	data, err := json.Marshal(w)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "London",
		"sys": {"country": "GB", "sunrise": 1700000000, "sunset": 1700030000},
		"main": {"temp": 10, "feels_like": 8, "temp_min": 8, "temp_max": 12, "pressure": 1012, "humidity": 80},
		"weather": [{"id": 3, "main": "Clouds", "description": "overcast", "icon": "03d"}],
		"wind": {"speed": 5, "deg": 270},
		"clouds": {"all": 0},
		"dt": 1700010000
	}`, string(data))
}

func TestCondition_Accessors(t *testing.T) {
	var nilWeather *CurrentWeather
	assert.Equal(t, Condition{}, nilWeather.Condition())
	assert.Equal(t, Condition{}, ForecastEntry{}.Condition())

	entry := ForecastEntry{Weather: []Condition{{Main: "Rain"}, {Main: "Snow"}}}
	assert.Equal(t, "Rain", entry.Condition().Main)
}
