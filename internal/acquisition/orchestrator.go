// Package acquisition turns a city name or the host position into a
// published weather view, tracking one status for the whole application.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weatherly/internal/geolocation"
	"github.com/neexbeast/weatherly/internal/weather"
)

// Status messages.
const (
	MsgLoading             = "Loading data..."
	MsgCityNotFound        = "City not found"
	MsgLoadFailed          = "Failed to load data"
	MsgCityLoaded          = "Data for %s loaded"
	MsgGeoUnsupported      = "Geolocation is not supported"
	MsgLocating            = "Requesting location..."
	MsgFetching            = "Fetching weather data..."
	MsgDataReceived        = "Data received!"
	MsgPermissionDenied    = "Permission denied. Allow geolocation access."
	MsgPositionUnavailable = "Position unavailable"
	MsgLocateTimeout       = "Timeout expired"
	MsgLocateFailed        = "Could not determine location"
)

// DefaultClearAfter is how long a location search success stays visible.
const DefaultClearAfter = 3 * time.Second

// ErrSuperseded is returned by a call whose result was discarded because a
// newer call of the same kind started before it settled.
var ErrSuperseded = errors.New("superseded by a newer request")

// Geocoder is the interface satisfied by weather.GeocodingClient.
type Geocoder interface {
	ResolveByName(ctx context.Context, query string) (*weather.Location, error)
	Suggest(ctx context.Context, query string) ([]weather.Location, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) weather.Location
}

// ForecastFetcher is the interface satisfied by weather.ForecastClient.
type ForecastFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*weather.Report, error)
}

// Orchestrator runs searches and publishes their outcome to a Store.
//
// Every search takes a fresh token and becomes the latest one. A search
// publishes only while its token is still the latest, so an older search
// that settles late never overwrites a newer one.
type Orchestrator struct {
	geo        Geocoder
	forecast   ForecastFetcher
	locator    geolocation.Locator
	locateOpts geolocation.Options
	clearAfter time.Duration
	store      *Store
	log        *slog.Logger

	mu            sync.Mutex
	latest        uuid.UUID
	latestSuggest uuid.UUID
	clearTimer    *time.Timer
}

// NewOrchestrator constructs an Orchestrator. A nil locator means the host
// has no geolocation capability.
func NewOrchestrator(geo Geocoder, forecast ForecastFetcher, locator geolocation.Locator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		geo:        geo,
		forecast:   forecast,
		locator:    locator,
		locateOpts: geolocation.DefaultOptions(),
		clearAfter: DefaultClearAfter,
		store:      NewStore(InitialState()),
		log:        log,
	}
}

// WithClearAfter overrides the success display window (for tests).
func (o *Orchestrator) WithClearAfter(d time.Duration) *Orchestrator {
	o.clearAfter = d
	return o
}

// WithLocateOptions overrides the position request options.
func (o *Orchestrator) WithLocateOptions(opts geolocation.Options) *Orchestrator {
	o.locateOpts = opts
	return o
}

// State returns the current application state.
func (o *Orchestrator) State() State {
	return o.store.Current()
}

// Subscribe registers fn for every state replacement.
func (o *Orchestrator) Subscribe(fn func(State)) (cancel func()) {
	return o.store.Subscribe(fn)
}

// Close stops a pending status auto-clear.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopClearTimer()
}

// begin makes a new token the latest and applies fn under it.
func (o *Orchestrator) begin(fn func(State) State) uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()

	token := uuid.New()
	o.latest = token
	// Pending suggestions are stale once a search starts.
	o.latestSuggest = uuid.Nil
	o.stopClearTimer()
	o.store.replace(fn)
	return token
}

// publish applies fn only if token is still the latest.
func (o *Orchestrator) publish(token uuid.UUID, fn func(State) State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if token != o.latest {
		return false
	}
	o.store.replace(fn)
	return true
}

// fail publishes an error status and returns cause, or ErrSuperseded.
func (o *Orchestrator) fail(token uuid.UUID, msg string, cause error) error {
	ok := o.publish(token, func(s State) State {
		s.Status = ErrorStatus(msg)
		s.Suggestions = []weather.Location{}
		return s
	})
	if !ok {
		return ErrSuperseded
	}
	return cause
}

func (o *Orchestrator) stopClearTimer() {
	if o.clearTimer != nil {
		o.clearTimer.Stop()
		o.clearTimer = nil
	}
}

// SearchByName resolves city and loads its weather. Blank input is
// rejected with weather.ErrEmptyQuery and leaves the state untouched. On
// any failure the previous view is kept.
func (o *Orchestrator) SearchByName(ctx context.Context, city string) error {
	city = strings.TrimSpace(city)
	if city == "" {
		return weather.ErrEmptyQuery
	}

	token := o.begin(func(s State) State {
		s.Query = city
		s.Status = LoadingStatus(MsgLoading)
		return s
	})

	loc, err := o.geo.ResolveByName(ctx, city)
	if err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			o.log.Info("city not found", "city", city)
			return o.fail(token, MsgCityNotFound, err)
		}
		o.log.Error("geocoding failed", "city", city, "err", err)
		return o.fail(token, MsgLoadFailed, err)
	}

	report, err := o.forecast.Fetch(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		o.log.Error("forecast fetch failed", "city", city, "err", err)
		return o.fail(token, MsgLoadFailed, err)
	}

	view := weather.Normalize(*loc, *report)
	ok := o.publish(token, func(s State) State {
		s.View = view
		s.Query = loc.DisplayName
		s.Suggestions = []weather.Location{}
		s.Status = SuccessStatus(fmt.Sprintf(MsgCityLoaded, loc.DisplayName))
		return s
	})
	if !ok {
		o.log.Info("search result discarded", "city", city)
		return ErrSuperseded
	}
	return nil
}

// SearchByLocation loads the weather at the host position. Reverse
// geocoding is best effort; a forecast failure is an error. A success
// status clears back to idle after the display window.
func (o *Orchestrator) SearchByLocation(ctx context.Context) error {
	if o.locator == nil {
		// No acquisition starts, so a search in flight stays the latest.
		o.mu.Lock()
		o.store.replace(func(s State) State {
			s.Status = ErrorStatus(MsgGeoUnsupported)
			return s
		})
		o.mu.Unlock()
		return geolocation.ErrUnavailable
	}

	token := o.begin(func(s State) State {
		s.Status = LoadingStatus(MsgLocating)
		return s
	})

	pos, err := o.locate(ctx)
	if err != nil {
		o.log.Warn("locating failed", "err", err)
		return o.fail(token, locateFailure(err), err)
	}

	ok := o.publish(token, func(s State) State {
		s.Status = LoadingStatus(MsgFetching)
		return s
	})
	if !ok {
		return ErrSuperseded
	}

	var (
		loc    weather.Location
		report *weather.Report
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("reverse geocoding panicked", "recover", r)
				loc = weather.CoordinateLocation(pos.Latitude, pos.Longitude)
			}
		}()
		loc = o.geo.ResolveByCoordinates(gCtx, pos.Latitude, pos.Longitude)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("forecast fetch panicked", "recover", r)
				err = fmt.Errorf("forecast fetch panicked: %v", r)
			}
		}()
		r, fetchErr := o.forecast.Fetch(gCtx, pos.Latitude, pos.Longitude)
		if fetchErr != nil {
			return fetchErr
		}
		report = r
		return nil
	})

	if err := g.Wait(); err != nil {
		o.log.Error("forecast fetch failed", "lat", pos.Latitude, "lon", pos.Longitude, "err", err)
		return o.fail(token, MsgLoadFailed, err)
	}

	view := weather.Normalize(loc, *report)
	ok = o.publish(token, func(s State) State {
		s.View = view
		s.Status = SuccessStatus(MsgDataReceived)
		return s
	})
	if !ok {
		o.log.Info("location result discarded")
		return ErrSuperseded
	}

	o.scheduleClear(token)
	return nil
}

func (o *Orchestrator) locate(ctx context.Context) (geolocation.Position, error) {
	if o.locateOpts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.locateOpts.Timeout)
		defer cancel()
	}

	pos, err := o.locator.Locate(ctx, o.locateOpts)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, geolocation.ErrTimeout) {
		err = fmt.Errorf("%w: %w", geolocation.ErrTimeout, err)
	}
	return pos, err
}

// locateFailure picks the status message for a locator error.
func locateFailure(err error) string {
	switch {
	case errors.Is(err, geolocation.ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.Is(err, geolocation.ErrPositionUnavailable):
		return MsgPositionUnavailable
	case errors.Is(err, geolocation.ErrTimeout):
		return MsgLocateTimeout
	default:
		return MsgLocateFailed
	}
}

// scheduleClear resets a success status to idle after clearAfter, unless a
// newer search has started by then.
func (o *Orchestrator) scheduleClear(token uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if token != o.latest {
		return
	}
	o.stopClearTimer()
	o.clearTimer = time.AfterFunc(o.clearAfter, func() {
		o.publish(token, func(s State) State {
			if s.Status.Kind == StatusSuccess {
				s.Status = IdleStatus()
			}
			return s
		})
	})
}

// SuggestCities returns autocomplete candidates for query and stores them
// in the state. It never touches the status. A response that arrives after
// a newer suggestion request, or after a search started, is returned but
// not stored.
func (o *Orchestrator) SuggestCities(ctx context.Context, query string) ([]weather.Location, error) {
	token := uuid.New()
	o.mu.Lock()
	o.latestSuggest = token
	o.mu.Unlock()

	locs, err := o.geo.Suggest(ctx, query)
	if err != nil {
		o.log.Warn("city suggestions failed", "query", query, "err", err)
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if token != o.latestSuggest {
		return locs, ErrSuperseded
	}
	stored := append([]weather.Location(nil), locs...)
	if stored == nil {
		stored = []weather.Location{}
	}
	o.store.replace(func(s State) State {
		s.Suggestions = stored
		return s
	})
	return locs, nil
}

// SetUnit switches the display unit. Stored temperatures stay in Celsius.
func (o *Orchestrator) SetUnit(u weather.Unit) error {
	if u != weather.Celsius && u != weather.Fahrenheit {
		return fmt.Errorf("%w: %q", weather.ErrUnknownUnit, u)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.replace(func(s State) State {
		s.Unit = u
		return s
	})
	return nil
}
