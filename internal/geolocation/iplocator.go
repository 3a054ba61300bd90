package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const ipLocatorDefaultURL = "http://ip-api.com"

// IPLocator estimates the host position from its public IP address using an
// ip-api.com compatible endpoint. The fix is city-level at best, so
// EnableHighAccuracy has no effect.
type IPLocator struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewIPLocator constructs an IPLocator against the public ip-api.com host.
func NewIPLocator() *IPLocator {
	return NewIPLocatorWithURL(ipLocatorDefaultURL)
}

// NewIPLocatorWithURL constructs an IPLocator pointing at a custom host (for tests).
func NewIPLocatorWithURL(baseURL string) *IPLocator {
	return &IPLocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "geoip",
			Timeout: 30 * time.Second,
		}),
	}
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate performs one lookup bounded by opts.Timeout. Only unavailability
// counts toward the breaker: a denial or an expired deadline is the
// caller's outcome, and it is always reported as such.
func (l *IPLocator) Locate(ctx context.Context, opts Options) (Position, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var callerErr error
	res, err := l.breaker.Execute(func() (any, error) {
		pos, err := l.lookup(ctx)
		if err != nil && (ctx.Err() != nil || errors.Is(err, ErrPermissionDenied)) {
			callerErr = err
			return nil, nil
		}
		return pos, err
	})
	if callerErr != nil {
		if ctx.Err() != nil {
			return Position{}, fmt.Errorf("ip lookup: %w", timeoutOr(ctx.Err(), ErrPositionUnavailable))
		}
		return Position{}, callerErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return Position{}, fmt.Errorf("ip lookup: %w", timeoutOr(ctx.Err(), ErrPositionUnavailable))
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Position{}, fmt.Errorf("ip lookup: %v: %w", err, ErrPositionUnavailable)
		}
		return Position{}, err
	}

	return res.(Position), nil
}

func (l *IPLocator) lookup(ctx context.Context) (Position, error) {
	endpoint := l.baseURL + "/json/?fields=status,message,lat,lon"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Position{}, fmt.Errorf("creating request for %s: %w", endpoint, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("GET %s: %w", endpoint, ErrPositionUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Position{}, fmt.Errorf("GET %s returned status %d: %w", endpoint, resp.StatusCode, ErrPermissionDenied)
	case resp.StatusCode != http.StatusOK:
		return Position{}, fmt.Errorf("GET %s returned status %d: %w", endpoint, resp.StatusCode, ErrPositionUnavailable)
	}

	var raw ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Position{}, fmt.Errorf("decoding response from %s: %w", endpoint, ErrPositionUnavailable)
	}
	if raw.Status != "success" {
		return Position{}, fmt.Errorf("ip lookup failed (%s): %w", raw.Message, ErrPositionUnavailable)
	}

	return Position{Latitude: raw.Lat, Longitude: raw.Lon, Timestamp: time.Now()}, nil
}
