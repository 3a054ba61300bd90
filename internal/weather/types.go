package weather

import (
	"fmt"
	"time"
)

// Location is a resolved place.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
	Country     string  `json:"country,omitempty"`
}

// CoordinateLocation builds the Location used when reverse geocoding
// yields nothing: the name is the coordinate pair itself.
func CoordinateLocation(lat, lon float64) Location {
	return Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: fmt.Sprintf("%.2f°, %.2f°", lat, lon),
	}
}

// CurrentConditions holds the current weather at a location. Temperatures
// are always stored in Celsius.
type CurrentConditions struct {
	TemperatureC float64 `json:"temperature_c"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	WeatherCode  int     `json:"weather_code"`
	HumidityPct  int     `json:"humidity_pct"`
	WindSpeedMs  float64 `json:"wind_speed_ms"`
	PressureHpa  float64 `json:"pressure_hpa"`
}

// ForecastDay is one entry of the daily forecast.
type ForecastDay struct {
	Date        time.Time `json:"date"`
	MaxTempC    float64   `json:"max_temp_c"`
	MinTempC    float64   `json:"min_temp_c"`
	WeatherCode int       `json:"weather_code"`
}

// View is the normalized weather view handed to presentation. It is built
// in one piece by Normalize and never modified afterwards.
type View struct {
	Location Location          `json:"location"`
	Current  CurrentConditions `json:"current"`
	Forecast []ForecastDay     `json:"forecast"`
}

// Daily is the forecast source's column-oriented daily block.
type Daily struct {
	Time        []string
	MaxTempC    []float64
	MinTempC    []float64
	WeatherCode []int
}

// Report is a successful forecast fetch: current conditions plus the raw
// daily columns, not yet zipped into ForecastDay records.
type Report struct {
	Current CurrentConditions
	Daily   Daily
}
