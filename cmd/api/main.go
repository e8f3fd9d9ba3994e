package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crosplit/internal/api"
	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
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

	// Initialize database
	db, err := database.New(cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	deps, closeDeps, err := api.DefaultDependencies(cfg, logger, db)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer closeDeps()

	// Initialize API server
	server := api.New(cfg, logger, db, deps)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
