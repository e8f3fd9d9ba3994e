package api

import (
	"fmt"
	"strings"

	"crosplit/internal/api/middleware"
	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/services/experiment"
	"crosplit/internal/services/notify"
	"crosplit/internal/services/shopify"
)

// Dependencies are the outside collaborators the server talks to.
type Dependencies struct {
	Sessions      middleware.TokenSource
	NewShopClient middleware.ShopClientFactory
	Sender        notify.Sender
	NewConvert    experiment.ConvertFactory
}

// DefaultDependencies wires the production collaborators. The returned func
// releases the session store and the notification publisher.
func DefaultDependencies(cfg *config.Config, logger *logger.Logger, db *database.Database) (Dependencies, func() error, error) {
	var sessions *shopify.SessionStore
	if strings.HasPrefix(cfg.DatabaseURL, "sqlite://") {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return Dependencies{}, nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sessions = shopify.NewSessionStore(sqlDB)
	} else {
		var err error
		if sessions, err = shopify.OpenSessionStore(cfg.DatabaseURL); err != nil {
			return Dependencies{}, nil, err
		}
	}

	sender, closeSender := notify.NewSender(cfg, logger)

	deps := Dependencies{
		Sessions: sessions,
		NewShopClient: func(shop, token string) *shopify.Client {
			return shopify.NewClient(shop, token, cfg.ShopifyAPIVersion, logger)
		},
		Sender:     sender,
		NewConvert: experiment.ConvertClientFactory(cfg.ConvertAPIURL, logger),
	}

	closer := func() error {
		if err := closeSender(); err != nil {
			return err
		}
		// the sqlite handle belongs to the gorm connection
		if strings.HasPrefix(cfg.DatabaseURL, "sqlite://") {
			return nil
		}
		return sessions.Close()
	}
	return deps, closer, nil
}
