package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-widget/internal/weather"
)

const DefaultIPLocatorURL = "http://ip-api.com/json/"

// IPLocator resolves the caller's approximate position from its public IP address.
type IPLocator struct {
	url     string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewIPLocator(client *http.Client, url string) *IPLocator {
	if url == "" {
		url = DefaultIPLocatorURL
	}
	return &IPLocator{
		url:     url,
		client:  client,
		circuit: newBreaker("geolocation"),
	}
}

func (l *IPLocator) Name() string {
	return "ip"
}

// Locate performs one lookup. Every failure wraps weather.ErrGeolocationDenied.
func (l *IPLocator) Locate(ctx context.Context) (weather.Coordinates, error) {
	resp, err := doGet(ctx, l.client, l.circuit, l.url)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return weather.Coordinates{}, err
		}
		return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrGeolocationDenied, err)
	}
	if resp.StatusCode != http.StatusOK {
		return weather.Coordinates{}, fmt.Errorf("%w: unexpected status code %d", weather.ErrGeolocationDenied, resp.StatusCode)
	}

	var payload struct {
		Status  string   `json:"status"`
		Message string   `json:"message"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: error parsing JSON: %v", weather.ErrGeolocationDenied, err)
	}
	if payload.Status != "success" {
		return weather.Coordinates{}, fmt.Errorf("%w: %s", weather.ErrGeolocationDenied, payload.Message)
	}
	if payload.Lat == nil || payload.Lon == nil {
		return weather.Coordinates{}, fmt.Errorf("%w: response has no coordinates", weather.ErrGeolocationDenied)
	}

	return weather.Coordinates{Latitude: *payload.Lat, Longitude: *payload.Lon}, nil
}

// StaticLocator always reports the configured coordinates.
type StaticLocator struct {
	Coords weather.Coordinates
}

func (l StaticLocator) Name() string {
	return "static"
}

func (l StaticLocator) Locate(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}
	return l.Coords, nil
}
