package api

import (
	"context"

	"github.com/neexbeast/weatherly/internal/acquisition"
	"github.com/neexbeast/weatherly/internal/weather"
)

// Acquirer defines the orchestrator operations needed by handlers.
type Acquirer interface {
	SearchByName(ctx context.Context, city string) error
	SearchByLocation(ctx context.Context) error
	SuggestCities(ctx context.Context, query string) ([]weather.Location, error)
	SetUnit(u weather.Unit) error
	State() acquisition.State
	Subscribe(fn func(acquisition.State)) (cancel func())
}

type redisPinger interface {
	Ping(ctx context.Context) error
}
