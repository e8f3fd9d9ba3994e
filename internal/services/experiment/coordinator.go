// Package experiment coordinates the split-test lifecycle: duplicate pages on
// the storefront, the Convert experience that splits traffic between them,
// significance checks and winner approval.
package experiment

import (
	"context"
	"strings"

	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/models"
	"crosplit/internal/services/convert"
	"crosplit/internal/services/notify"
	"crosplit/internal/services/shopify"
)

// PageService is the part of the Shopify admin client the coordinator uses.
type PageService interface {
	ShopDomain() string
	HandleTaken(ctx context.Context, handle string) (bool, error)
	CreatePage(ctx context.Context, input shopify.PageInput) (*shopify.Page, error)
	CreateMetafield(ctx context.Context, metafield shopify.Metafield) error
	DeletePage(ctx context.Context, pageID int64) error
}

// ExperienceAPI is the part of the Convert client the coordinator uses.
type ExperienceAPI interface {
	AddLocation(ctx context.Context, location convert.Location) (convert.ID, error)
	AddExperience(ctx context.Context, input convert.ExperienceInput) (*convert.Experience, error)
	GetExperience(ctx context.Context, experienceID string) (*convert.Experience, error)
	UpdateExperienceStatus(ctx context.Context, experienceID, status string) error
	DeleteExperience(ctx context.Context, experienceID string) error
	DeleteVariation(ctx context.Context, experienceID, variationID string) error
	AggregatedReport(ctx context.Context, experienceID string) ([]convert.GoalReport, error)
	ConvertVariation(ctx context.Context, experienceID, variationID string) error
}

// ConvertFactory builds an ExperienceAPI from the credentials in the settings row.
type ConvertFactory func(settings models.Setting) (ExperienceAPI, error)

// ConvertClientFactory returns a factory for real Convert clients.
func ConvertClientFactory(baseURL string, logger *logger.Logger) ConvertFactory {
	return func(settings models.Setting) (ExperienceAPI, error) {
		creds, err := convert.CredentialsFrom(settings)
		if err != nil {
			return nil, err
		}
		return convert.NewClient(baseURL, creds, logger), nil
	}
}

type Coordinator struct {
	store      *database.Database
	sender     notify.Sender
	newConvert ConvertFactory
	logger     *logger.Logger

	appURL   string
	notifyTo string
}

func New(cfg *config.Config, store *database.Database, sender notify.Sender, newConvert ConvertFactory, logger *logger.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		sender:     sender,
		newConvert: newConvert,
		logger:     logger,
		appURL:     strings.TrimRight(cfg.AppURL, "/"),
		notifyTo:   cfg.NotifyTo,
	}
}

// notify sends msg and only logs failures.
func (c *Coordinator) notify(ctx context.Context, build func(to []string) (notify.Message, error), settings models.Setting) bool {
	to := notify.Recipients(settings.NotifyEmail, c.notifyTo)
	if len(to) == 0 {
		c.logger.Warn("no notification recipients configured, skipping email")
		return false
	}
	msg, err := build(to)
	if err != nil {
		c.logger.Error("failed to build notification: %v", err)
		return false
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logger.Error("failed to send %s notification: %v", msg.Kind, err)
		return false
	}
	return true
}
