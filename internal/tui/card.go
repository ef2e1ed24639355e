package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/i474232898/weather-widget/internal/weather"
)

var titleCaser = cases.Title(language.English)

// conditionGlyph stands in for the provider icon, which a terminal can't show.
func conditionGlyph(c weather.Condition) string {
	switch c {
	case weather.ConditionClear:
		return "☀"
	case weather.ConditionCloudy:
		return "☁"
	case weather.ConditionRain:
		return "☂"
	case weather.ConditionSnow:
		return "❄"
	case weather.ConditionStorm:
		return "⚡"
	case weather.ConditionMist:
		return "≋"
	default:
		return "·"
	}
}

// locationLine joins name and country, skipping whichever is empty.
func locationLine(s weather.WeatherSnapshot) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{s.LocationName, s.CountryName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatWind(kph float64) string {
	return strconv.FormatFloat(kph, 'f', -1, 64) + " km/h"
}

// renderCard draws the weather card for a successful fetch.
func renderCard(st Styles, s weather.WeatherSnapshot) string {
	heading := st.Heading.Render(locationLine(s))
	temp := conditionGlyph(s.Condition) + "  " + st.Temp.Render(weather.FormatTemperature(s.TemperatureC))

	lines := []string{heading, temp}
	if text := strings.TrimSpace(s.ConditionText); text != "" {
		lines = append(lines, titleCaser.String(text))
	}
	lines = append(lines,
		fmt.Sprintf("Humidity: %d%%", s.HumidityPercent),
		"Wind: "+formatWind(s.WindKph),
	)

	return st.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
