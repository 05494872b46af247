package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"proctor/internal/platform/config"
	"proctor/internal/platform/httpserver"
	"proctor/internal/platform/logger"
)

// main loads configuration, wires the correlation service and runs the HTTP
// server alongside the background workers until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "proctor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, logCloser := logger.New(cfg.Log)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	srv := httpserver.New(cfg.Addr, app.router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, 10*time.Second, log)
	})
	for _, worker := range app.workers {
		g.Go(func() error {
			return worker(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("proctor stopped with error", "error", err)
		return err
	}
	log.Info("proctor stopped")
	return nil
}
