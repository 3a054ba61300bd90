package weather_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weatherly/internal/weather"
	"github.com/neexbeast/weatherly/internal/weathercode"
)

func bishkek() weather.Location {
	return weather.Location{Latitude: 42.87, Longitude: 74.59, DisplayName: "Bishkek", Country: "Kyrgyzstan"}
}

func TestNormalize_Bishkek(t *testing.T) {
	report := weather.Report{
		Current: weather.CurrentConditions{
			TemperatureC: 20,
			FeelsLikeC:   18,
			WeatherCode:  1,
			WindSpeedMs:  3,
			PressureHpa:  1013,
		},
	}

	view := weather.Normalize(bishkek(), report)
	require.NotNil(t, view)
	assert.Equal(t, bishkek(), view.Location)
	assert.Equal(t, 18.0, view.Current.FeelsLikeC)
	assert.Equal(t, 0, view.Current.HumidityPct)
	assert.Equal(t, "Mostly clear", weathercode.Describe(view.Current.WeatherCode))
	assert.NotNil(t, view.Forecast)
	assert.Empty(t, view.Forecast)
}

func TestNormalize_ZipsDailyInOrder(t *testing.T) {
	report := weather.Report{
		Daily: weather.Daily{
			Time:        []string{"2026-10-19", "2026-10-20", "2026-10-21"},
			MaxTempC:    []float64{21, 19, 15},
			MinTempC:    []float64{9, 8, 4},
			WeatherCode: []int{0, 3, 95},
		},
	}

	view := weather.Normalize(bishkek(), report)
	require.Len(t, view.Forecast, 3)

	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), view.Forecast[0].Date)
	assert.Equal(t, 21.0, view.Forecast[0].MaxTempC)
	assert.Equal(t, 9.0, view.Forecast[0].MinTempC)
	assert.Equal(t, 0, view.Forecast[0].WeatherCode)
	assert.Equal(t, 95, view.Forecast[2].WeatherCode)
	assert.True(t, view.Forecast[1].Date.Before(view.Forecast[2].Date))
}

func TestNormalize_MismatchedColumnsTruncateToShortest(t *testing.T) {
	report := weather.Report{
		Daily: weather.Daily{
			Time:        []string{"2026-10-19", "2026-10-20", "2026-10-21"},
			MaxTempC:    []float64{21, 19},
			MinTempC:    []float64{9, 8, 4, 2},
			WeatherCode: []int{0, 3, 95},
		},
	}

	view := weather.Normalize(bishkek(), report)
	assert.Len(t, view.Forecast, 2)
}

func TestNormalize_SkipsUnparseableDates(t *testing.T) {
	report := weather.Report{
		Daily: weather.Daily{
			Time:        []string{"2026-10-19", "yesterday", "2026-10-21"},
			MaxTempC:    []float64{1, 2, 3},
			MinTempC:    []float64{0, 0, 0},
			WeatherCode: []int{0, 0, 0},
		},
	}

	view := weather.Normalize(bishkek(), report)
	require.Len(t, view.Forecast, 2)
	assert.Equal(t, 3.0, view.Forecast[1].MaxTempC)
}

func TestCoordinateLocation(t *testing.T) {
	loc := weather.CoordinateLocation(42.8746, 74.5698)
	assert.Equal(t, "42.87°, 74.57°", loc.DisplayName)
	assert.Empty(t, loc.Country)
}
