package bootstrap

import (
	"context"
	"fmt"

	"github.com/samirrijal/housingetl/internal/adapters/postgres"
	"github.com/samirrijal/housingetl/internal/adapters/sqlstore"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/pkg/config"
	"github.com/samirrijal/housingetl/internal/pkg/metrics"
)

// ListingStore is the read side the API serves from.
type ListingStore struct {
	Repo  ports.ListingRepository
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenListings reads from postgres when database.enabled is set and from the
// sqlite output file otherwise.
func OpenListings(ctx context.Context, cfg *config.Config) (*ListingStore, error) {
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &ListingStore{
			Repo: postgres.NewListingRepo(db, cfg.Pipeline.Dataset),
			Ping: func(ctx context.Context) error {
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				return db.Ping(ctx)
			},
			Close: db.Close,
		}, nil
	}

	store, err := sqlstore.OpenSQLite(cfg.SQLite.Path, cfg.Pipeline.Dataset)
	if err != nil {
		return nil, err
	}
	return &ListingStore{
		Repo:  store,
		Ping:  store.Ping,
		Close: func() { _ = store.Close() },
	}, nil
}

// PingFunc adapts a function to the Ping method set.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
