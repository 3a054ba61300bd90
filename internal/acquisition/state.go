package acquisition

import (
	"sync"

	"github.com/google/uuid"

	"github.com/neexbeast/weatherly/internal/weather"
)

// StatusKind is the active acquisition status variant.
type StatusKind string

const (
	StatusIdle    StatusKind = "idle"
	StatusLoading StatusKind = "loading"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is what the status line shows.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

// IdleStatus is the resting status. It carries no message.
func IdleStatus() Status { return Status{Kind: StatusIdle} }

// LoadingStatus marks an acquisition in flight.
func LoadingStatus(msg string) Status { return Status{Kind: StatusLoading, Message: msg} }

// SuccessStatus reports a published view.
func SuccessStatus(msg string) Status { return Status{Kind: StatusSuccess, Message: msg} }

// ErrorStatus reports a failed acquisition. The previous view is kept.
func ErrorStatus(msg string) Status { return Status{Kind: StatusError, Message: msg} }

// State is the whole application state. A State is never modified once it
// has been stored; every transition stores a new value.
type State struct {
	Query       string             `json:"query"`
	View        *weather.View      `json:"view"`
	Status      Status             `json:"status"`
	Unit        weather.Unit       `json:"unit"`
	Suggestions []weather.Location `json:"suggestions"`
}

// Loading reports whether an acquisition is in flight.
func (s State) Loading() bool {
	return s.Status.Kind == StatusLoading
}

// InitialState is idle, in Celsius, with nothing loaded.
func InitialState() State {
	return State{
		Status:      IdleStatus(),
		Unit:        weather.Celsius,
		Suggestions: []weather.Location{},
	}
}

// Store holds the current State and notifies subscribers on every
// replacement. Subscribers are called in replacement order, outside the
// state lock, and must not replace the state themselves.
type Store struct {
	notifyMu sync.Mutex

	mu    sync.Mutex
	state State
	subs  map[uuid.UUID]func(State)
}

// NewStore returns a Store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[uuid.UUID]func(State))}
}

// Current returns the current state.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	id := uuid.New()

	s.mu.Lock()
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// replace stores fn(current) and notifies subscribers with it.
func (s *Store) replace(fn func(State) State) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := fn(s.state)
	s.state = next
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
	return next
}
