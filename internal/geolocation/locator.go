// Package geolocation provides the host's "where am I" capability: a
// Locator yields the current position or one of three distinguishable
// failures.
package geolocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the host has no geolocation capability at all.
	ErrUnavailable = errors.New("geolocation unavailable")

	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("geolocation timed out")
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaximumAge = 60 * time.Second
)

// Options mirrors the knobs of a position request.
type Options struct {
	// EnableHighAccuracy asks for the most precise fix the locator can give.
	EnableHighAccuracy bool
	// Timeout bounds a single Locate call.
	Timeout time.Duration
	// MaximumAge is how old a cached position may be and still be returned.
	MaximumAge time.Duration
}

// DefaultOptions returns low accuracy, a 10 s timeout and a 60 s maximum age.
func DefaultOptions() Options {
	return Options{
		EnableHighAccuracy: false,
		Timeout:            DefaultTimeout,
		MaximumAge:         DefaultMaximumAge,
	}
}

// Position is a located coordinate pair.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Locator obtains the current position.
type Locator interface {
	Locate(ctx context.Context, opts Options) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (Position, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, opts Options) (Position, error) {
	return f(ctx, opts)
}

// StaticLocator always reports the same coordinates.
type StaticLocator struct {
	Latitude  float64
	Longitude float64
	now       func() time.Time
}

// NewStaticLocator returns a Locator fixed at lat/lon.
func NewStaticLocator(lat, lon float64) *StaticLocator {
	return &StaticLocator{Latitude: lat, Longitude: lon, now: time.Now}
}

// Locate returns the fixed position unless ctx is already done.
func (s *StaticLocator) Locate(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, timeoutOr(err, ErrPositionUnavailable)
	}
	return Position{Latitude: s.Latitude, Longitude: s.Longitude, Timestamp: s.now()}, nil
}

// timeoutOr maps a context deadline to ErrTimeout and anything else to fallback.
func timeoutOr(err, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fallback
}
