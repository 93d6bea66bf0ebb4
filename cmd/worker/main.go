package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/pkg/config"
	"github.com/samirrijal/housingetl/internal/pkg/logging"
	"github.com/samirrijal/housingetl/internal/pkg/telemetry"
	"github.com/samirrijal/housingetl/internal/workflows"
)

func main() {
	cfg, err := config.Load("housingetl-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	rt, err := bootstrap.NewRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	defer rt.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.HousingPipelineWorkflow)
	w.RegisterActivity(&workflows.PipelineActivities{Pipeline: rt.Pipeline})

	slog.Info("pipeline worker started", "task_queue", cfg.Temporal.TaskQueue, "sinks", cfg.Pipeline.Sinks)
	if err := w.Run(worker.InterruptCh()); err != nil {
		slog.Error("worker stopped", "error", err)
	}
}
