package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-widget/internal/common"
	"github.com/i474232898/weather-widget/internal/weather"
)

const DefaultWeatherAPIBaseURL = "https://api.weatherapi.com"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client

	mu           sync.Mutex
	circuit      *gobreaker.CircuitBreaker
	circuitQuery string
}

// NewWeatherAPIProvider creates a provider. An empty baseURL selects the public endpoint.
func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIBaseURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location *struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current *struct {
		LastUpdatedEpoch int64   `json:"last_updated_epoch"`
		TempC            float64 `json:"temp_c"`
		Humidity         int     `json:"humidity"`
		WindKph          float64 `json:"wind_kph"`
		Condition        struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Current fetches current conditions for q. The error object in the body is
// authoritative regardless of the HTTP status.
func (p *WeatherAPIProvider) Current(ctx context.Context, q weather.LocationQuery) (weather.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return weather.WeatherSnapshot{}, weather.NewTransportError(fmt.Errorf("weatherapi api key is not configured"))
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", q.Value())
	u := fmt.Sprintf("%s/v1/current.json?%s", p.baseURL, values.Encode())

	resp, err := doGet(ctx, p.client, p.breakerFor(q), u)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return weather.WeatherSnapshot{}, err
		}
		var se *statusError
		if errors.As(err, &se) {
			if svcErr := decodeServiceError(se.resp.Body); svcErr != nil {
				return weather.WeatherSnapshot{}, svcErr
			}
		}
		return weather.WeatherSnapshot{}, weather.NewTransportError(err)
	}

	var payload weatherAPIPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return weather.WeatherSnapshot{}, weather.NewTransportError(fmt.Errorf("error parsing JSON: %w", err))
	}

	if payload.Error != nil {
		return weather.WeatherSnapshot{}, &weather.ServiceError{
			Code:    payload.Error.Code,
			Message: payload.Error.Message,
		}
	}
	if payload.Location == nil || payload.Current == nil {
		return weather.WeatherSnapshot{}, weather.ErrIncompletePayload
	}

	ts := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		ts = time.Now().UTC()
	}

	return weather.WeatherSnapshot{
		LocationName:    payload.Location.Name,
		CountryName:     payload.Location.Country,
		IconURL:         normalizeIconURL(payload.Current.Condition.Icon),
		TemperatureC:    payload.Current.TempC,
		ConditionText:   payload.Current.Condition.Text,
		HumidityPercent: payload.Current.Humidity,
		WindKph:         payload.Current.WindKph,
		Condition:       mapWeatherAPICondition(payload.Current.Condition.Text),
		UpdatedAt:       ts,
	}, nil
}

// breakerFor returns the circuit breaker guarding q. Every new query starts
// with a closed breaker; only repeated lookups of one query (refreshes) are
// short-circuited while the service keeps failing.
func (p *WeatherAPIProvider) breakerFor(q weather.LocationQuery) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := q.String()
	if p.circuit == nil || key != p.circuitQuery {
		p.circuit = newBreaker("weatherapi")
		p.circuitQuery = key
	}
	return p.circuit
}

func decodeServiceError(body []byte) error {
	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return nil
	}
	return &weather.ServiceError{Code: payload.Error.Code, Message: payload.Error.Message}
}

// WeatherAPI serves protocol-relative icon URLs.
func normalizeIconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAnyFold(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAnyFold(text, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAnyFold(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAnyFold(text, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAnyFold(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAnyFold(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
