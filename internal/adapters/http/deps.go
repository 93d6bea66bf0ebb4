package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/housingetl/internal/core/usecases"
)

// Pinger is anything the readiness check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Listings *usecases.ListingService
	Vintages *usecases.VintageService
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
}
