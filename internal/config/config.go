// Package config loads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Geolocation modes.
const (
	GeoIP     = "ip"
	GeoStatic = "static"
	GeoOff    = "off"
)

var validate = validator.New()

// Config is the validated process configuration.
type Config struct {
	Port         string `validate:"required,numeric"`
	GeocodingURL string `validate:"required,url"`
	ForecastURL  string `validate:"required,url"`
	Language     string `validate:"required"`
	// DefaultCity is searched once at startup. Empty disables it.
	DefaultCity string

	Geolocation string   `validate:"oneof=ip static off"`
	GeoIPURL    string   `validate:"required_if=Geolocation ip,omitempty,url"`
	Latitude    *float64 `validate:"required_if=Geolocation static,omitempty,gte=-90,lte=90"`
	Longitude   *float64 `validate:"required_if=Geolocation static,omitempty,gte=-180,lte=180"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	// RedisURL, when set, moves the position cache to Redis.
	RedisURL string `validate:"omitempty,url"`
	// BearerToken, when set, protects every route but health.
	BearerToken string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := &Config{
		Port:         getenvDefault("PORT", "8080"),
		GeocodingURL: getenvDefault("WEATHERLY_GEOCODING_URL", "https://geocoding-api.open-meteo.com"),
		ForecastURL:  getenvDefault("WEATHERLY_FORECAST_URL", "https://api.open-meteo.com"),
		Language:     getenvDefault("WEATHERLY_LANGUAGE", "ru"),
		DefaultCity:  "Bishkek",
		Geolocation:  getenvDefault("WEATHERLY_GEOLOCATION", GeoIP),
		GeoIPURL:     getenvDefault("WEATHERLY_GEOIP_URL", "http://ip-api.com"),
		RedisURL:     os.Getenv("REDIS_URL"),
		BearerToken:  os.Getenv("BEARER_TOKEN"),
	}
	if v, ok := os.LookupEnv("WEATHERLY_DEFAULT_CITY"); ok {
		cfg.DefaultCity = v
	}

	timeout, err := time.ParseDuration(getenvDefault("WEATHERLY_HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHERLY_HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	if cfg.Latitude, err = getenvFloat("WEATHERLY_LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = getenvFloat("WEATHERLY_LONGITUDE"); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}
