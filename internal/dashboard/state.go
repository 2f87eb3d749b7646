package dashboard

import (
	"strconv"
	"strings"

	"atmos/internal/types"
)

// DefaultCity is the city shown when the dashboard starts.
const DefaultCity = "London"

// DefaultErrorMessage is displayed when a failed fetch carries no message.
const DefaultErrorMessage = "Failed to fetch weather"

// Status is the lifecycle phase of the dashboard.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Coordinates is a latitude/longitude pair, e.g. from device location.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Query selects what the dashboard fetches: a city search or, when
// Coordinates is set, a location search.
type Query struct {
	City        string
	Coordinates *Coordinates
}

// CityQuery builds a city search.
func CityQuery(city string) Query {
	return Query{City: city}
}

// LocationQuery builds a coordinate search.
func LocationQuery(lat, lon float64) Query {
	return Query{Coordinates: &Coordinates{Lat: lat, Lon: lon}}
}

// IsLocation reports whether q is a coordinate search.
func (q Query) IsLocation() bool {
	return q.Coordinates != nil
}

// params returns the API query parameters for q.
func (q Query) params() map[string]string {
	if q.IsLocation() {
		return map[string]string{
			"lat": strconv.FormatFloat(q.Coordinates.Lat, 'f', -1, 64),
			"lon": strconv.FormatFloat(q.Coordinates.Lon, 'f', -1, 64),
		}
	}
	return map[string]string{"city": q.City}
}

// State is the complete display state of one dashboard.
type State struct {
	Status   Status
	City     string
	Weather  *types.CurrentWeather
	Forecast *types.ForecastResponse
	Error    string

	// pending is the query of the fetch in flight or last completed.
	pending Query
}

// NewState returns the initial idle state.
func NewState() State {
	return State{Status: StatusIdle, City: DefaultCity}
}

// Action is a discrete state transition.
type Action interface {
	apply(s State) State
}

// Start begins a fetch for Query.
type Start struct {
	Query Query
}

// Succeed completes a fetch. Forecast may be nil when only the forecast
// call failed.
type Succeed struct {
	Weather  *types.CurrentWeather
	Forecast *types.ForecastResponse
}

// Fail completes a fetch with an error message.
type Fail struct {
	Message string
}

// Reduce returns the state that results from applying a to s. It never
// mutates s.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

func (a Start) apply(s State) State {
	if !a.Query.IsLocation() {
		city := strings.TrimSpace(a.Query.City)
		if city == "" {
			return s
		}
		s.City = city
		a.Query.City = city
	}
	s.Status = StatusLoading
	s.Error = ""
	s.pending = a.Query
	return s
}

func (a Succeed) apply(s State) State {
	s.Status = StatusSuccess
	s.Error = ""
	s.Weather = a.Weather
	s.Forecast = a.Forecast
	if s.pending.IsLocation() && a.Weather != nil && a.Weather.Name != "" {
		s.City = a.Weather.Name
	}
	return s
}

func (a Fail) apply(s State) State {
	s.Status = StatusError
	s.Error = a.Message
	if s.Error == "" {
		s.Error = DefaultErrorMessage
	}
	// A failed city search clears the display; a failed location search
	// keeps whatever was shown before.
	if !s.pending.IsLocation() {
		s.Weather = nil
		s.Forecast = nil
	}
	return s
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool {
	return s.Status == StatusLoading
}

// Days returns the daily cards for the current forecast.
func (s State) Days() []DailyAggregate {
	if s.Forecast == nil {
		return nil
	}
	return Aggregate(s.Forecast.List)
}
