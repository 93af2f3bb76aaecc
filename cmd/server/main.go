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

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.New(cfg, db, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := a.Run(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
