package controller

import "github.com/i474232898/weather-widget/internal/weather"

// Display is what a presentation layer should render for a state.
type Display struct {
	// Message is the error line; it stays visible while a new request loads.
	Message string
	Loading bool
	// Snapshot is set only when neither an error nor the loading line is shown.
	Snapshot *weather.WeatherSnapshot
}

// Display applies the widget's render rule: error line, then loading line,
// then the weather card when neither is present.
func (s State) Display() Display {
	var d Display
	switch s.Request.Phase {
	case weather.PhaseFailed:
		d.Message = s.Request.Message
	case weather.PhaseLoading:
		d.Loading = true
		if s.Settled.Phase == weather.PhaseFailed {
			d.Message = s.Settled.Message
		}
	case weather.PhaseSuccess:
		d.Snapshot = s.Request.Snapshot
	}
	return d
}
