// Package tui renders the weather widget in the terminal.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by the widget.
type Styles struct {
	Title   lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Card    lipgloss.Style
	Heading lipgloss.Style
	Temp    lipgloss.Style
	Spinner lipgloss.Style
}

// NewStyles returns the default styles. NO_COLOR disables all colors.
func NewStyles() Styles {
	primary := lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#60a5fa"}
	errColor := lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	muted := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	border := lipgloss.AdaptiveColor{Light: "#d1d5db", Dark: "#4b5563"}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		empty := lipgloss.AdaptiveColor{}
		primary, errColor, muted, border = empty, empty, empty, empty
	}

	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(primary),
		Error: lipgloss.NewStyle().Foreground(errColor),
		Muted: lipgloss.NewStyle().Foreground(muted),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 2),
		Heading: lipgloss.NewStyle().Bold(true),
		Temp:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Spinner: lipgloss.NewStyle().Foreground(primary),
	}
}
