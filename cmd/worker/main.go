package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.New(cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize worker
	w, err := worker.New(cfg, logger, db)
	if err != nil {
		logger.Fatal("Failed to initialize worker: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start worker
	logger.Info("Starting worker...")
	w.Start(ctx)

	logger.Info("Shutting down worker...")
	w.Stop()
}
