package engine

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kafkasplit/internal/logging"
	"kafkasplit/internal/pipeline"
	"kafkasplit/internal/telemetry"
	"kafkasplit/internal/transport"
)

type Config struct {
	SpecPath    string
	GRPCPort    int // 0 → from the spec
	MetricsPort int // 0 → from the spec; still 0 → disabled
}

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := telemetry.NewMetrics(reg)

	// 2. pipeline runner
	runner, err := pipeline.Compile(cfg.SpecPath, m)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	sp := runner.Spec()
	if sp.Log.Level != "" || sp.Log.JSON {
		logging.Configure(logging.Options{Level: sp.Log.Level, JSON: sp.Log.JSON})
	}
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = sp.Server.GRPCPort
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = sp.Server.MetricsPort
	}

	// 3. transport server
	srv, err := transport.StartServer(cfg.GRPCPort, runner, transport.Options{
		BlockRows:     sp.Sink.MaxRows,
		MaxConcurrent: sp.Server.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 4. metrics endpoint
	if cfg.MetricsPort > 0 {
		telemetry.Expose(ctx, cfg.MetricsPort, reg)
	}

	logging.For("engine").Info("ready",
		"grpc_port", cfg.GRPCPort, "metrics_port", cfg.MetricsPort, "topics", runner.Topics())
	return &Engine{
		transport: srv,
	}, nil
}
