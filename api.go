package handler

import (
	"net/http"
	"sync"

	"crosplit/internal/api"
	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	log := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		initErr = err
		return
	}

	// Serverless instances are torn down without a hook, so the closer is not kept.
	deps, _, err := api.DefaultDependencies(cfg, log, db)
	if err != nil {
		log.Error("Failed to wire dependencies: %v", err)
		initErr = err
		return
	}

	router = api.New(cfg, log, db, deps).GetRouter()
}

// Handler is the serverless entry point. The router is built on first use and
// shared by later invocations of the same instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
