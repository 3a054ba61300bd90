package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/weatherly/internal/acquisition"
	"github.com/neexbeast/weatherly/internal/geolocation"
	"github.com/neexbeast/weatherly/internal/present"
	"github.com/neexbeast/weatherly/internal/weather"
)

var validate = validator.New()

// streamBuffer is how many unsent states a slow stream client may lag behind
// before older ones are dropped.
const streamBuffer = 8

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	acq Acquirer
	log *slog.Logger
}

// NewHandlers constructs Handlers.
func NewHandlers(acq Acquirer, log *slog.Logger) *Handlers {
	return &Handlers{acq: acq, log: log}
}

type errorBody struct {
	Error string             `json:"error"`
	State *acquisition.State `json:"state,omitempty"`
}

type searchQuery struct {
	City string `validate:"required,max=200"`
}

type suggestQuery struct {
	Q string `validate:"max=200"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an acquisition error to an HTTP status and the sentinel
// whose text is safe to show.
func classify(err error) (int, error) {
	switch {
	case errors.Is(err, weather.ErrEmptyQuery):
		return http.StatusBadRequest, weather.ErrEmptyQuery
	case errors.Is(err, weather.ErrUnknownUnit):
		return http.StatusBadRequest, weather.ErrUnknownUnit
	case errors.Is(err, weather.ErrNotFound):
		return http.StatusNotFound, weather.ErrNotFound
	case errors.Is(err, acquisition.ErrSuperseded):
		return http.StatusConflict, acquisition.ErrSuperseded
	case errors.Is(err, geolocation.ErrUnavailable):
		return http.StatusNotImplemented, geolocation.ErrUnavailable
	case errors.Is(err, geolocation.ErrPermissionDenied):
		return http.StatusForbidden, geolocation.ErrPermissionDenied
	case errors.Is(err, geolocation.ErrPositionUnavailable):
		return http.StatusServiceUnavailable, geolocation.ErrPositionUnavailable
	case errors.Is(err, geolocation.ErrTimeout):
		return http.StatusGatewayTimeout, geolocation.ErrTimeout
	case errors.Is(err, weather.ErrFetch):
		return http.StatusBadGateway, weather.ErrFetch
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}

// detach keeps the request's values but not its cancellation. A search
// publishes to shared state, so it runs to completion even if its client
// disconnects; the upstream client timeouts still bound it.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handlers) writeOutcome(w http.ResponseWriter, err error) {
	st := h.acq.State()
	if err == nil {
		writeJSON(w, http.StatusOK, st)
		return
	}
	status, public := classify(err)
	writeJSON(w, status, errorBody{Error: public.Error(), State: &st})
}

// Search handles POST /api/v1/search?city=.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{City: strings.TrimSpace(r.URL.Query().Get("city"))}
	if err := validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: weather.ErrEmptyQuery.Error()})
		return
	}

	err := h.acq.SearchByName(detach(r), q.City)
	if err != nil {
		h.log.Info("search failed", "city", q.City, "err", err)
	}
	h.writeOutcome(w, err)
}

// Locate handles POST /api/v1/locate.
func (h *Handlers) Locate(w http.ResponseWriter, r *http.Request) {
	err := h.acq.SearchByLocation(detach(r))
	if err != nil {
		h.log.Info("locate failed", "err", err)
	}
	h.writeOutcome(w, err)
}

// Suggest handles GET /api/v1/suggest?q=. A superseded response is still
// returned to its own caller.
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	q := suggestQuery{Q: r.URL.Query().Get("q")}
	if err := validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query too long"})
		return
	}

	locs, err := h.acq.SuggestCities(r.Context(), q.Q)
	if err != nil && !errors.Is(err, acquisition.ErrSuperseded) {
		status, public := classify(err)
		writeJSON(w, status, errorBody{Error: public.Error()})
		return
	}
	if locs == nil {
		locs = []weather.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

// SetUnit handles PUT /api/v1/unit/{unit}.
func (h *Handlers) SetUnit(w http.ResponseWriter, r *http.Request) {
	u, err := weather.ParseUnit(chi.URLParam(r, "unit"))
	if err == nil {
		err = h.acq.SetUnit(u)
	}
	h.writeOutcome(w, err)
}

// GetState handles GET /api/v1/state.
func (h *Handlers) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.acq.State())
}

// GetView handles GET /api/v1/view.
func (h *Handlers) GetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, present.Render(h.acq.State()))
}

// StreamState handles GET /api/v1/state/stream. It sends the current state
// and then every replacement as a server-sent event until the client goes
// away.
func (h *Handlers) StreamState(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	updates := make(chan acquisition.State, streamBuffer)
	cancel := h.acq.Subscribe(func(s acquisition.State) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			// Drop the oldest pending state; the newest always gets through.
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(s acquisition.State) error {
		payload, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(h.acq.State()); err != nil {
		h.log.Warn("state stream write failed", "err", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-updates:
			if err := send(s); err != nil {
				h.log.Warn("state stream write failed", "err", err)
				return
			}
		}
	}
}

// HealthHandlerFunc returns an http.HandlerFunc that reports Redis
// connectivity. A nil redis reports "disabled" and is healthy.
func HealthHandlerFunc(redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		redisStatus := "disabled"

		if redis != nil {
			redisStatus = "ok"
			if err := redis.Ping(ctx); err != nil {
				log.Error("health check: redis ping failed", "err", err)
				redisStatus = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"redis":  redisStatus,
		})
	}
}
