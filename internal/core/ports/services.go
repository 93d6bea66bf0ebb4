package ports

import (
	"context"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// EventPublisher publishes pipeline events to a message broker.
type EventPublisher interface {
	PublishDatasetLoaded(ctx context.Context, event *domain.DatasetEvent) error
}

// EventSubscriber subscribes to pipeline events from a message broker.
type EventSubscriber interface {
	SubscribeDatasetLoaded(ctx context.Context, handler func(ctx context.Context, event *domain.DatasetEvent) error) error
}

// CacheService provides read-through caching. Get returns ErrCacheMiss when
// the key is absent.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// SchemaRegistry exposes the immutable vintage registry.
type SchemaRegistry interface {
	Keys() []domain.VintageKey
	Lookup(key domain.VintageKey) (*domain.VintageSchema, bool)
	Aliases() domain.AliasTable
}
