package weather_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weatherly/internal/weather"
)

func bishkekResults() map[string]any {
	return map[string]any{
		"results": []map[string]any{
			{"id": 1528675, "name": "Bishkek", "country": "Kyrgyzstan", "latitude": 42.87, "longitude": 74.59},
			{"id": 1528676, "name": "Bishkek-2", "country": "Kyrgyzstan", "latitude": 42.8, "longitude": 74.6},
		},
	}
}

func jsonHandler(t *testing.T, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func forecastBody() map[string]any {
	return map[string]any{
		"current_weather": map[string]any{"temperature": 20.0, "windspeed": 3.0, "weathercode": 1},
		"hourly": map[string]any{
			"relativehumidity_2m": []any{55, 60},
			"pressure_msl":        []any{1008.4, 1009.0},
		},
		"daily": map[string]any{
			"time":               []string{"2026-10-19", "2026-10-20"},
			"temperature_2m_max": []float64{21.5, 18.2},
			"temperature_2m_min": []float64{9.1, 7.4},
			"weathercode":        []int{1, 61},
		},
	}
}

// ---- GeocodingClient ----

func TestResolveByName_FirstResultWins(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		gotQuery = r.URL.Query()
		jsonHandler(t, bishkekResults())(w, r)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	loc, err := c.ResolveByName(context.Background(), "  Bishkek ")
	require.NoError(t, err)
	require.NotNil(t, loc)

	assert.Equal(t, "Bishkek", loc.DisplayName)
	assert.Equal(t, "Kyrgyzstan", loc.Country)
	assert.Equal(t, 42.87, loc.Latitude)
	assert.Equal(t, 74.59, loc.Longitude)

	assert.Equal(t, []string{"Bishkek"}, gotQuery["name"])
	assert.Equal(t, []string{"1"}, gotQuery["count"])
	assert.Equal(t, []string{"ru"}, gotQuery["language"])
}

func TestResolveByName_EmptyQuery_NoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := c.ResolveByName(context.Background(), q)
		require.ErrorIs(t, err, weather.ErrEmptyQuery)
	}
	assert.Zero(t, hits.Load())
}

func TestResolveByName_NoResults(t *testing.T) {
	for name, body := range map[string]any{
		"absent": map[string]any{"generationtime_ms": 0.5},
		"empty":  map[string]any{"results": []any{}},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(t, body))
			defer srv.Close()

			c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
			_, err := c.ResolveByName(context.Background(), "Atlantis")
			require.ErrorIs(t, err, weather.ErrNotFound)
			assert.NotErrorIs(t, err, weather.ErrFetch)
		})
	}
}

func TestResolveByName_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	_, err := c.ResolveByName(context.Background(), "Bishkek")
	require.ErrorIs(t, err, weather.ErrFetch)
	assert.NotErrorIs(t, err, weather.ErrNotFound)
}

func TestSuggest_ShortQuery_NoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	for _, q := range []string{"", "B", "Б"} {
		locs, err := c.Suggest(context.Background(), q)
		require.NoError(t, err)
		assert.NotNil(t, locs)
		assert.Empty(t, locs)
	}
	assert.Zero(t, hits.Load())
}

func TestSuggest_ReturnsUpToFive(t *testing.T) {
	results := make([]map[string]any, 0, 7)
	for i := 0; i < 7; i++ {
		results = append(results, map[string]any{"id": i, "name": "Bi", "latitude": float64(i), "longitude": 1.0})
	}

	var gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("count")
		jsonHandler(t, map[string]any{"results": results})(w, r)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	locs, err := c.Suggest(context.Background(), "Бi")
	require.NoError(t, err)
	assert.Equal(t, "5", gotCount)
	require.Len(t, locs, weather.SuggestCount)
	for i, l := range locs {
		assert.Equal(t, float64(i), l.Latitude, "order must be preserved")
	}
}

func TestResolveByCoordinates_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reverse", r.URL.Path)
		assert.Equal(t, "42.8746", r.URL.Query().Get("latitude"))
		jsonHandler(t, bishkekResults())(w, r)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	loc := c.ResolveByCoordinates(context.Background(), 42.8746, 74.5698)
	assert.Equal(t, "Bishkek", loc.DisplayName)
	assert.Equal(t, "Kyrgyzstan", loc.Country)
	assert.Equal(t, 42.8746, loc.Latitude)
}

func TestResolveByCoordinates_EmptyResults_FallsBackToCoordinates(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, map[string]any{"results": []any{}}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	loc := c.ResolveByCoordinates(context.Background(), 42.8746, 74.5698)
	assert.Equal(t, "42.87°, 74.57°", loc.DisplayName)
	assert.Empty(t, loc.Country)
	assert.Equal(t, 42.8746, loc.Latitude)
	assert.Equal(t, 74.5698, loc.Longitude)
}

func TestResolveByCoordinates_ServerError_FallsBackToCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	loc := c.ResolveByCoordinates(context.Background(), -33.8688, 151.2093)
	assert.Equal(t, "-33.87°, 151.21°", loc.DisplayName)
	assert.Empty(t, loc.Country)
}

func TestResolveByCoordinates_FailuresDoNotBlockNameSearch(t *testing.T) {
	var searchHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/reverse" {
			http.NotFound(w, r)
			return
		}
		searchHits.Add(1)
		jsonHandler(t, bishkekResults())(w, r)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	for i := 0; i < 10; i++ {
		loc := c.ResolveByCoordinates(context.Background(), 42.8746, 74.5698)
		assert.Equal(t, "42.87°, 74.57°", loc.DisplayName)
	}

	loc, err := c.ResolveByName(context.Background(), "Bishkek")
	require.NoError(t, err)
	assert.Equal(t, "Bishkek", loc.DisplayName)
	assert.EqualValues(t, 1, searchHits.Load())
}

func TestSuggest_FailuresDoNotBlockNameSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "1" {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		jsonHandler(t, bishkekResults())(w, r)
	}))
	defer srv.Close()

	c := weather.NewGeocodingClientWithURL(srv.URL, "ru")
	for i := 0; i < 10; i++ {
		_, err := c.Suggest(context.Background(), "Bish")
		require.ErrorIs(t, err, weather.ErrFetch)
	}

	loc, err := c.ResolveByName(context.Background(), "Bishkek")
	require.NoError(t, err)
	assert.Equal(t, "Bishkek", loc.DisplayName)
}

// ---- ForecastClient ----

func TestForecastFetch_Success(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		gotQuery = r.URL.Query()
		jsonHandler(t, forecastBody())(w, r)
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	report, err := c.Fetch(context.Background(), 42.87, 74.59)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 20.0, report.Current.TemperatureC)
	assert.Equal(t, 18.0, report.Current.FeelsLikeC)
	assert.Equal(t, 1, report.Current.WeatherCode)
	assert.Equal(t, 55, report.Current.HumidityPct)
	assert.Equal(t, 3.0, report.Current.WindSpeedMs)
	assert.Equal(t, 1008.4, report.Current.PressureHpa)
	assert.Len(t, report.Daily.Time, 2)

	assert.Equal(t, []string{"42.87"}, gotQuery["latitude"])
	assert.Equal(t, []string{"74.59"}, gotQuery["longitude"])
	assert.Equal(t, []string{"true"}, gotQuery["current_weather"])
	assert.Equal(t, []string{"temperature_2m,relativehumidity_2m,windspeed_10m,pressure_msl"}, gotQuery["hourly"])
	assert.Equal(t, []string{"weathercode,temperature_2m_max,temperature_2m_min"}, gotQuery["daily"])
	assert.Equal(t, []string{"auto"}, gotQuery["timezone"])
}

func TestForecastFetch_DefaultsWhenHourlyAbsent(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, map[string]any{
		"current_weather": map[string]any{"temperature": -3.5, "windspeed": 7.2, "weathercode": 71},
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	report, err := c.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Current.HumidityPct)
	assert.Equal(t, 1013.0, report.Current.PressureHpa)
	assert.Equal(t, -5.5, report.Current.FeelsLikeC)
	assert.Empty(t, report.Daily.Time)
}

func TestForecastFetch_DefaultsWhenHourlyNullOrZero(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, map[string]any{
		"current_weather": map[string]any{"temperature": 10.0, "windspeed": 1.0, "weathercode": 0},
		"hourly": map[string]any{
			"relativehumidity_2m": []any{nil},
			"pressure_msl":        []any{0},
		},
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	report, err := c.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Current.HumidityPct)
	assert.Equal(t, 1013.0, report.Current.PressureHpa)
}

func TestForecastFetch_MissingCurrentWeather(t *testing.T) {
	body := forecastBody()
	delete(body, "current_weather")
	srv := httptest.NewServer(jsonHandler(t, body))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	report, err := c.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, weather.ErrFetch)
	assert.Nil(t, report)
}

func TestForecastFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "err", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	_, err := c.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, weather.ErrFetch)
}

func TestForecastFetch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	_, err := c.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, weather.ErrFetch)
}

func TestForecastFetch_Timeout(t *testing.T) {
	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slowSrv.Close()

	c := weather.NewForecastClientWithURL(slowSrv.URL).WithTimeout(100 * time.Millisecond)
	_, err := c.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, weather.ErrFetch)
}

func TestForecastFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "err", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Fetch(context.Background(), 1, 2)
		require.ErrorIs(t, err, weather.ErrFetch)
	}
	require.EqualValues(t, 5, hits.Load())

	_, err := c.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, weather.ErrFetch)
	assert.EqualValues(t, 5, hits.Load(), "open breaker must not reach the upstream")
}

func TestForecastFetch_CanceledContextDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jsonHandler(t, forecastBody())(w, r)
	}))
	defer srv.Close()

	c := weather.NewForecastClientWithURL(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		_, err := c.Fetch(ctx, 1, 2)
		require.ErrorIs(t, err, weather.ErrFetch)
	}

	_, err := c.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)
}
