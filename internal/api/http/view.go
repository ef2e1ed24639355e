package httpapi

import (
	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/weather"
)

// stateView is the JSON shape rendered to clients.
type stateView struct {
	Phase   weather.Phase        `json:"phase"`
	Place   string               `json:"place"`
	Query   string               `json:"query,omitempty"`
	Coords  *weather.Coordinates `json:"coords,omitempty"`
	Loading bool                 `json:"loading"`
	Message string               `json:"message,omitempty"`
	Weather *weatherView         `json:"weather,omitempty"`
	// GeolocationError is kept after the message line moves on.
	GeolocationError string `json:"geolocationError,omitempty"`
}

type weatherView struct {
	weather.WeatherSnapshot
	Temperature string `json:"temperature"`
}

func newStateView(s controller.State) stateView {
	d := s.Display()
	v := stateView{
		Phase:   s.Request.Phase,
		Place:   s.Place,
		Coords:  s.Coords,
		Loading: d.Loading,
		Message: d.Message,

		GeolocationError: s.GeolocationError,
	}
	if s.Query != nil {
		v.Query = s.Query.Value()
	}
	if d.Snapshot != nil {
		v.Weather = &weatherView{
			WeatherSnapshot: *d.Snapshot,
			Temperature:     weather.FormatTemperature(d.Snapshot.TemperatureC),
		}
	}
	return v
}
