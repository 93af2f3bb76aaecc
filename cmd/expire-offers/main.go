// Command expire-offers moves every awaiting offer past its valid_until to EXPIRED.
// It runs one sweep and exits; schedule it with cron or a job runner.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quoteflow/config"
	"quoteflow/internal/app"
	"quoteflow/internal/repository/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	a, err := app.New(cfg, db, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	n, err := a.Offers().ExpireOverdue(ctx)
	if err != nil {
		logger.Error("expiry sweep failed", "expired", n, "err", err)
		os.Exit(1)
	}
	logger.Info("expiry sweep finished", "expired", n)
}
