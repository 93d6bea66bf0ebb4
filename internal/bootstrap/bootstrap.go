// Package bootstrap turns a loaded configuration into wired services for the
// binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/housingetl/internal/adapters/csvfeed"
	"github.com/samirrijal/housingetl/internal/adapters/httpfetch"
	"github.com/samirrijal/housingetl/internal/adapters/kml"
	natsadapter "github.com/samirrijal/housingetl/internal/adapters/nats"
	"github.com/samirrijal/housingetl/internal/adapters/postgres"
	"github.com/samirrijal/housingetl/internal/adapters/sqlstore"
	"github.com/samirrijal/housingetl/internal/adapters/valkey"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/pkg/config"
	"github.com/samirrijal/housingetl/internal/registry"
)

// Runtime holds the pipeline and the resources it owns.
type Runtime struct {
	Config   *config.Config
	Registry *registry.Registry
	Pipeline *usecases.PipelineService
	Sinks    []ports.DatasetWriter

	inspectors map[string]ports.DatasetInspector
	closers    []func()
}

// NewRuntime opens every configured sink and optional dependency and builds
// the pipeline service. Sinks are required; the cache and NATS are optional
// and only logged when unreachable.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	reg, err := registry.Load(cfg.Pipeline.RegistryPath)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		Config:     cfg,
		Registry:   reg,
		inspectors: make(map[string]ports.DatasetInspector),
	}

	for _, name := range cfg.Pipeline.Sinks {
		if err := rt.openSink(ctx, name); err != nil {
			rt.Close()
			return nil, err
		}
	}

	opts := []httpfetch.Option{httpfetch.WithUserAgent(cfg.Fetch.UserAgent)}
	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr, "housingetl:")
		if err != nil {
			slog.Warn("valkey unavailable, fetching without cache", "error", err)
		} else {
			rt.closers = append(rt.closers, cache.Close)
			opts = append(opts, httpfetch.WithCache(cache, "source", cfg.Valkey.TTLSeconds))
		}
	}
	client := httpfetch.New(
		time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second,
		httpfetch.Policy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Fetch.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Fetch.MaxBackoffMs) * time.Millisecond,
		},
		opts...,
	)

	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, dataset events disabled", "error", err)
		} else {
			rt.closers = append(rt.closers, pub.Close)
			events = pub
		}
	}

	pcfg := usecases.PipelineConfig{
		Dataset:          cfg.Pipeline.Dataset,
		Concurrency:      cfg.Pipeline.Concurrency,
		RecordWorkers:    cfg.Pipeline.RecordWorkers,
		PropertyPrefixes: cfg.Pipeline.PropertyPrefixes,
	}
	if t := cfg.Pipeline.Tourism; t.Enabled {
		pcfg.Tourism = &usecases.TourismSources{
			EntriesURL:    t.EntriesURL,
			ForeignersURL: t.ForeignersURL,
			ColombiansURL: t.ColombiansURL,
		}
	}

	rt.Pipeline = usecases.NewPipelineService(reg, kml.NewFetcher(client), csvfeed.New(client), rt.Sinks, events, pcfg)
	return rt, nil
}

func (rt *Runtime) openSink(ctx context.Context, name string) error {
	cfg := rt.Config
	switch name {
	case config.SinkSQLite:
		store, err := sqlstore.OpenSQLite(cfg.SQLite.Path, cfg.Pipeline.Dataset)
		if err != nil {
			return err
		}
		rt.add(name, store, store, func() { _ = store.Close() })
	case config.SinkMySQL:
		store, err := sqlstore.OpenMySQL(ctx, cfg.MySQL.DSN, cfg.Pipeline.Dataset)
		if err != nil {
			return err
		}
		rt.add(name, store, store, func() { _ = store.Close() })
	case config.SinkPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
		repo := postgres.NewDatasetRepo(db)
		rt.add(name, repo, repo, db.Close)
	default:
		return fmt.Errorf("unknown sink %q", name)
	}
	return nil
}

func (rt *Runtime) add(name string, w ports.DatasetWriter, in ports.DatasetInspector, closer func()) {
	rt.Sinks = append(rt.Sinks, w)
	rt.inspectors[name] = in
	rt.closers = append(rt.closers, closer)
}

// Inspector returns the inspector of a configured sink.
func (rt *Runtime) Inspector(name string) (ports.DatasetInspector, error) {
	in, ok := rt.inspectors[name]
	if !ok {
		return nil, fmt.Errorf("sink %q is not configured", name)
	}
	return in, nil
}

// Close releases everything the runtime opened, newest first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
