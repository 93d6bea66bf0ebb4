package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/housingetl/internal/adapters/http"
	natsadapter "github.com/samirrijal/housingetl/internal/adapters/nats"
	"github.com/samirrijal/housingetl/internal/adapters/valkey"
	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/pkg/config"
	"github.com/samirrijal/housingetl/internal/pkg/logging"
	"github.com/samirrijal/housingetl/internal/pkg/telemetry"
	"github.com/samirrijal/housingetl/internal/registry"
)

func main() {
	cfg, err := config.Load("housingetl-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	reg, err := registry.Load(cfg.Pipeline.RegistryPath)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}

	// Listing store
	store, err := bootstrap.OpenListings(ctx, cfg)
	if err != nil {
		log.Fatalf("listings: %v", err)
	}
	defer store.Close()

	deps := &http.Dependencies{
		Vintages: usecases.NewVintageService(reg),
		DB:       bootstrap.PingFunc(store.Ping),
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "housingetl:")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}
	listings := usecases.NewListingService(store.Repo, cache)
	deps.Listings = listings

	// NATS: cache invalidation on new loads and the WebSocket relay
	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeDatasetLoaded(ctx, listings.Invalidate); err != nil {
				slog.Warn("dataset subscription failed", "error", err)
			}
		}

		natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
			deps.NATS = natsConn
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Housing Offers API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
