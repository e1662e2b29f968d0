package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"kafkasplit/internal/engine"
	"kafkasplit/internal/logging"
)

func main() {
	var cfg engine.Config
	flag.StringVar(&cfg.SpecPath, "spec", "engine.yml", "engine spec file")
	flag.IntVar(&cfg.GRPCPort, "grpc-port", 0, "grpc port (0 = from spec)")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0, "metrics port (0 = from spec)")
	flag.Parse()

	logging.InitFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
