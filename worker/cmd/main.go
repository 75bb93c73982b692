package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"neuralsearch/bootstrap"
	"neuralsearch/config"
	"neuralsearch/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	enqueuePending := flag.Bool("enqueue-pending", false, "queue jobs for documents without an embedding before starting")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		os.Exit(1)
	}
	if cfg.Queue.Driver != "postgres" {
		log.Fatalf("standalone worker needs the postgres queue, got %q", cfg.Queue.Driver)
	}

	logger := logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	if err := components.Embedder.Warmup(ctx); err != nil {
		logger.Warn("embedding model not ready, jobs will be retried", "error", err)
	}

	if *enqueuePending || cfg.Worker.EnqueuePending {
		n, err := components.Ingest.EnqueuePending(ctx, 10000)
		if err != nil {
			logger.Error("failed to enqueue pending documents", "error", err)
		}
		logger.Info("pending documents enqueued", "count", n)
	}

	components.Runner(cfg, logger).Run(ctx)
	logger.Info("worker stopped")
}
