package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Coordinates is a WGS84 position reported by a Locator or set by the user.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the coordinates the way the weather service expects them in q.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// QueryKind distinguishes place-name queries from coordinate queries.
type QueryKind string

const (
	QueryPlace  QueryKind = "place"
	QueryCoords QueryKind = "coords"
)

// LocationQuery is the effective query sent to the weather service.
// Exactly one of Place or Coords is meaningful, selected by Kind.
type LocationQuery struct {
	Kind   QueryKind   `json:"kind"`
	Place  string      `json:"place,omitempty"`
	Coords Coordinates `json:"coords"`
}

func PlaceQuery(name string) LocationQuery {
	return LocationQuery{Kind: QueryPlace, Place: name}
}

func CoordsQuery(c Coordinates) LocationQuery {
	return LocationQuery{Kind: QueryCoords, Coords: c}
}

// Value returns the string passed as the q parameter.
func (q LocationQuery) Value() string {
	if q.Kind == QueryCoords {
		return q.Coords.String()
	}
	return q.Place
}

func (q LocationQuery) String() string {
	return fmt.Sprintf("%s:%s", q.Kind, q.Value())
}

// ResolveQuery applies the precedence rule: trimmed, non-empty place text wins,
// then known coordinates. The bool is false when there is no effective query.
func ResolveQuery(place string, coords *Coordinates) (LocationQuery, bool) {
	if p := strings.TrimSpace(place); p != "" {
		return PlaceQuery(p), true
	}
	if coords != nil {
		return CoordsQuery(*coords), true
	}
	return LocationQuery{}, false
}

// WeatherSnapshot is the normalized projection of a current-conditions response.
type WeatherSnapshot struct {
	LocationName    string    `json:"locationName"`
	CountryName     string    `json:"countryName"`
	IconURL         string    `json:"iconUrl"`
	TemperatureC    float64   `json:"temperatureC"`
	ConditionText   string    `json:"conditionText"`
	HumidityPercent int       `json:"humidityPercent"`
	WindKph         float64   `json:"windKph"`
	Condition       Condition `json:"condition"`
	UpdatedAt       time.Time `json:"updatedAt"` // always UTC
}

// RoundTemperature rounds half up toward positive infinity, so -2.5 becomes -2.
func RoundTemperature(c float64) int {
	return int(math.Floor(c + 0.5))
}

// FormatTemperature renders a temperature for display, e.g. "21°C".
func FormatTemperature(c float64) string {
	return strconv.Itoa(RoundTemperature(c)) + "°C"
}
