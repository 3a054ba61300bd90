package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
)

const httpTimeout = 10 * time.Second

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// newBreaker opens after five consecutive upstream failures and half-opens
// again after 30 seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
}

// doGet performs a GET request through cb and decodes the JSON response into
// dst. Every failure wraps ErrFetch.
func doGet(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, rawURL string, dst any) error {
	var reqErr error
	_, err := cb.Execute(func() (any, error) {
		reqErr = get(ctx, client, rawURL, dst)
		if reqErr != nil && ctx.Err() != nil {
			// Abandoned by the caller; not the upstream's fault.
			return nil, nil
		}
		return nil, reqErr
	})
	if err == nil {
		err = reqErr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ---- Geocoding ----

const (
	geocodingDefaultURL = "https://geocoding-api.open-meteo.com"

	// SuggestCount is the maximum number of autocomplete candidates.
	SuggestCount = 5
	// SuggestMinLength is the shortest query, in characters, that is sent upstream.
	SuggestMinLength = 2
)

// GeocodingClient resolves place names to coordinates and back through the
// Open-Meteo geocoding API. Name search, suggestions and reverse lookup each
// have their own breaker, so failures of the best-effort calls never block
// ResolveByName.
type GeocodingClient struct {
	baseURL  string
	language string
	client   *http.Client

	searchBreaker  *gobreaker.CircuitBreaker
	suggestBreaker *gobreaker.CircuitBreaker
	reverseBreaker *gobreaker.CircuitBreaker
}

// NewGeocodingClient constructs a GeocodingClient against the public API.
func NewGeocodingClient(language string) *GeocodingClient {
	return NewGeocodingClientWithURL(geocodingDefaultURL, language)
}

// NewGeocodingClientWithURL constructs a GeocodingClient pointing at a custom host (for tests).
func NewGeocodingClientWithURL(baseURL, language string) *GeocodingClient {
	return &GeocodingClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client:   newHTTPClient(),

		searchBreaker:  newBreaker("geocoding-search"),
		suggestBreaker: newBreaker("geocoding-suggest"),
		reverseBreaker: newBreaker("geocoding-reverse"),
	}
}

// WithTimeout replaces the per-request timeout.
func (c *GeocodingClient) WithTimeout(d time.Duration) *GeocodingClient {
	c.client = &http.Client{Timeout: d}
	return c
}

type geocodingResult struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type geocodingResponse struct {
	Results []geocodingResult `json:"results"`
}

func (r geocodingResult) location() Location {
	return Location{
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		DisplayName: r.Name,
		Country:     r.Country,
	}
}

func (c *GeocodingClient) search(ctx context.Context, cb *gobreaker.CircuitBreaker, name string, count int) ([]geocodingResult, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", c.language)
	endpoint := c.baseURL + "/v1/search?" + q.Encode()

	var raw geocodingResponse
	if err := doGet(ctx, c.client, cb, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("geocoding search for %q: %w", name, err)
	}
	return raw.Results, nil
}

// ResolveByName returns the best match for query. A blank query fails with
// ErrEmptyQuery before any request is made.
func (c *GeocodingClient) ResolveByName(ctx context.Context, query string) (*Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	results, err := c.search(ctx, c.searchBreaker, query, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("geocoding %q: %w", query, ErrNotFound)
	}

	loc := results[0].location()
	return &loc, nil
}

// Suggest returns up to SuggestCount candidates for query. Queries shorter
// than SuggestMinLength return an empty slice without a request.
func (c *GeocodingClient) Suggest(ctx context.Context, query string) ([]Location, error) {
	if utf8.RuneCountInString(query) < SuggestMinLength {
		return []Location{}, nil
	}

	results, err := c.search(ctx, c.suggestBreaker, query, SuggestCount)
	if err != nil {
		return nil, err
	}

	n := min(len(results), SuggestCount)
	locs := make([]Location, 0, n)
	for _, r := range results[:n] {
		locs = append(locs, r.location())
	}
	return locs, nil
}

// ResolveByCoordinates names the place at lat/lon. It never fails: when the
// lookup errors or finds nothing, the coordinates themselves become the name.
func (c *GeocodingClient) ResolveByCoordinates(ctx context.Context, lat, lon float64) Location {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("language", c.language)
	endpoint := c.baseURL + "/v1/reverse?" + q.Encode()

	var raw geocodingResponse
	if err := doGet(ctx, c.client, c.reverseBreaker, endpoint, &raw); err != nil {
		slog.Warn("reverse geocoding failed, using coordinates", "lat", lat, "lon", lon, "err", err)
		return CoordinateLocation(lat, lon)
	}
	if len(raw.Results) == 0 {
		return CoordinateLocation(lat, lon)
	}

	// Keep the requested coordinates; the match is only used for its name.
	return Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: raw.Results[0].Name,
		Country:     raw.Results[0].Country,
	}
}

// ---- Forecast ----

const (
	forecastDefaultURL = "https://api.open-meteo.com"

	defaultHumidityPct = 0
	defaultPressureHpa = 1013.0

	// feelsLikeOffset is subtracted from the air temperature to get the
	// displayed feels-like value.
	feelsLikeOffset = 2.0
)

// ForecastClient fetches current conditions and the daily forecast from the
// Open-Meteo forecast API.
type ForecastClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewForecastClient constructs a ForecastClient against the public API.
func NewForecastClient() *ForecastClient {
	return NewForecastClientWithURL(forecastDefaultURL)
}

// NewForecastClientWithURL constructs a ForecastClient pointing at a custom host (for tests).
func NewForecastClientWithURL(baseURL string) *ForecastClient {
	return &ForecastClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
		breaker: newBreaker("forecast"),
	}
}

// WithTimeout replaces the per-request timeout.
func (c *ForecastClient) WithTimeout(d time.Duration) *ForecastClient {
	c.client = &http.Client{Timeout: d}
	return c
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Hourly *struct {
		RelativeHumidity []*float64 `json:"relativehumidity_2m"`
		PressureMSL      []*float64 `json:"pressure_msl"`
	} `json:"hourly"`
	Daily *struct {
		Time           []string  `json:"time"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weathercode"`
	} `json:"daily"`
}

// firstOr returns the first value of vals when it is present and non-zero.
func firstOr(vals []*float64, fallback float64) float64 {
	if len(vals) == 0 || vals[0] == nil || *vals[0] == 0 {
		return fallback
	}
	return *vals[0]
}

// Fetch retrieves current conditions and daily forecast columns for lat/lon.
// A response without current conditions fails with ErrFetch.
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) (*Report, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("current_weather", "true")
	q.Set("hourly", "temperature_2m,relativehumidity_2m,windspeed_10m,pressure_msl")
	q.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	endpoint := c.baseURL + "/v1/forecast?" + q.Encode()

	var raw forecastResponse
	if err := doGet(ctx, c.client, c.breaker, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("forecast fetch for %s,%s: %w", formatCoord(lat), formatCoord(lon), err)
	}

	if raw.CurrentWeather == nil {
		return nil, fmt.Errorf("forecast for %s,%s has no current conditions: %w",
			formatCoord(lat), formatCoord(lon), ErrFetch)
	}

	humidity := float64(defaultHumidityPct)
	pressure := defaultPressureHpa
	if raw.Hourly != nil {
		humidity = firstOr(raw.Hourly.RelativeHumidity, humidity)
		pressure = firstOr(raw.Hourly.PressureMSL, pressure)
	}

	report := &Report{
		Current: CurrentConditions{
			TemperatureC: raw.CurrentWeather.Temperature,
			FeelsLikeC:   raw.CurrentWeather.Temperature - feelsLikeOffset,
			WeatherCode:  raw.CurrentWeather.WeatherCode,
			HumidityPct:  int(math.Round(humidity)),
			WindSpeedMs:  raw.CurrentWeather.WindSpeed,
			PressureHpa:  pressure,
		},
	}

	if raw.Daily != nil {
		report.Daily = Daily{
			Time:        raw.Daily.Time,
			MaxTempC:    raw.Daily.TemperatureMax,
			MinTempC:    raw.Daily.TemperatureMin,
			WeatherCode: raw.Daily.WeatherCode,
		}
	}

	return report, nil
}
