package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"crosplit/internal/api/handlers"
	"crosplit/internal/api/middleware"
	"crosplit/internal/config"
	shopifyconnector "crosplit/internal/connectors/shopify"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/services/ai"
	"crosplit/internal/services/experiment"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.SetHTMLTemplate(handlers.Templates)

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.FrameAncestors())

	coordinator := experiment.New(cfg, db, deps.Sender, deps.NewConvert, logger)

	// Initialize handlers
	pageHandler := handlers.NewPageHandler(db, coordinator, ai.New(cfg, logger), shopifyconnector.New(db, logger), logger)
	experimentHandler := handlers.NewExperimentHandler(db, coordinator, logger)
	settingsHandler := handlers.NewSettingsHandler(db, logger)

	router.GET("/healthz", handlers.Health(db))

	// Approval links arrive from email, outside the embedded admin.
	approve := router.Group("/app/variant/approve")
	{
		approve.GET("", experimentHandler.ApprovalForm)
		approve.POST("", experimentHandler.Approve)
	}

	cron := router.Group("/api/cron", middleware.CronAuth(cfg.CronSecret))
	{
		cron.GET("/significance", experimentHandler.Significance)
		cron.POST("/significance", experimentHandler.Significance)
		cron.GET("/reconcile", experimentHandler.Reconcile)
		cron.POST("/reconcile", experimentHandler.Reconcile)
	}

	// Admin routes need the shop's session and admin client.
	api := router.Group("/api", middleware.ShopSession(deps.Sessions, deps.NewShopClient, logger))
	{
		settings := api.Group("/settings")
		{
			settings.GET("", settingsHandler.Get)
			settings.PUT("", settingsHandler.Update)
		}

		experiments := api.Group("/experiments")
		{
			experiments.GET("", experimentHandler.List)
			experiments.POST("/:experienceId/variations/:variantId/convert", experimentHandler.Convert)
		}

		api.POST("/page", pageHandler.Suggest)
		api.POST("/submit/pages", pageHandler.Submit)
		api.POST("/delete/page", pageHandler.Delete)
		api.GET("/pages", pageHandler.List)
		api.POST("/pages/sync", pageHandler.Sync)
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GetRouter returns the Gin router for Vercel
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
