package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neuralsearch/app/server"
	"neuralsearch/bootstrap"
	"neuralsearch/config"
	"neuralsearch/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
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

	logger := logging.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	if err := components.Embedder.Warmup(ctx); err != nil {
		logger.Warn("embedding model not ready, will retry on first use", "error", err)
	}

	s := server.NewServer(cfg, components, logger)
	go func() {
		if err := s.Run(ctx); err != nil {
			cancel()
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigch:
		logger.Info("Received shutdown signal, shutting down server...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := s.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
