package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-widget/internal/weather"
)

// Geolocation modes.
const (
	GeolocationIP     = "ip"
	GeolocationStatic = "static"
	GeolocationOff    = "off"
)

type AppConfig struct {
	WeatherAPIKey     string `validate:"required"`
	WeatherAPIBaseURL string `validate:"omitempty,url"`

	// HTTPTimeout bounds outbound calls. Zero means no timeout: requests end
	// only when they complete or are superseded.
	HTTPTimeout time.Duration `validate:"gte=0"`

	Geolocation    string `validate:"oneof=ip static off"`
	GeolocationURL string `validate:"omitempty,url"`
	// StaticCoords is set when Geolocation is "static".
	StaticCoords *weather.Coordinates

	// RefreshInterval re-issues the current query periodically (0 = disabled).
	RefreshInterval time.Duration `validate:"gte=0"`

	Port    string `validate:"required,numeric"`
	LogFile string
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.WeatherAPIBaseURL = os.Getenv("WEATHERAPI_BASE_URL")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	cfg.Geolocation = strings.ToLower(getenvDefault("GEOLOCATION", GeolocationIP))
	cfg.GeolocationURL = os.Getenv("GEOLOCATION_URL")
	if cfg.Geolocation == GeolocationStatic {
		coords, err := loadStaticCoords()
		if err != nil {
			return nil, err
		}
		cfg.StaticCoords = coords
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogFile = getenvDefault("LOG_FILE", "weather-widget.log")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

type staticCoords struct {
	Latitude  string `validate:"required,latitude"`
	Longitude string `validate:"required,longitude"`
}

func loadStaticCoords() (*weather.Coordinates, error) {
	raw := staticCoords{
		Latitude:  os.Getenv("LOCATION_LATITUDE"),
		Longitude: os.Getenv("LOCATION_LONGITUDE"),
	}
	if err := validate.Struct(raw); err != nil {
		return nil, fmt.Errorf("GEOLOCATION=static requires LOCATION_LATITUDE and LOCATION_LONGITUDE: %w", err)
	}

	lat, err := strconv.ParseFloat(raw.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_LATITUDE: %w", err)
	}
	lon, err := strconv.ParseFloat(raw.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_LONGITUDE: %w", err)
	}

	return &weather.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
