package weather

import (
	"context"
)

// Provider abstracts the current-conditions weather service.
type Provider interface {
	Name() string
	Current(ctx context.Context, q LocationQuery) (WeatherSnapshot, error)
}

// Locator is a one-shot source of the user's position.
type Locator interface {
	Name() string
	Locate(ctx context.Context) (Coordinates, error)
}
