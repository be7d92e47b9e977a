// Package main runs the betting platform API server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pactpoint/backend/internal/app/runtime"
	"github.com/pactpoint/backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := runtime.New(cfg)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
