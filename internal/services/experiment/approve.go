package experiment

import (
	"context"
	"strings"

	"crosplit/internal/apperr"
	"crosplit/internal/models"
	"crosplit/internal/services/convert"
)

// ApproveWinner ends the experience and promotes variantID. The local row is
// only marked completed once both remote calls have succeeded.
func (c *Coordinator) ApproveWinner(ctx context.Context, settings models.Setting, goalID, variantID, experienceID string) (*models.Experiment, error) {
	goalID, variantID, experienceID = strings.TrimSpace(goalID), strings.TrimSpace(variantID), strings.TrimSpace(experienceID)
	if goalID == "" || variantID == "" || experienceID == "" {
		return nil, apperr.UserInput("goalId, variantId and experienceId are required")
	}

	experiment, err := c.approvable(ctx, experienceID, variantID, false)
	if err != nil {
		return nil, err
	}

	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}

	if err := api.UpdateExperienceStatus(ctx, experienceID, convert.StatusCompleted); err != nil {
		return nil, err
	}
	if err := api.ConvertVariation(ctx, experienceID, variantID); err != nil {
		c.logger.Error("experience %s was ended but variant %s was not converted; re-run the conversion: %v", experienceID, variantID, err)
		return nil, err
	}

	if err := c.store.CompleteExperiment(ctx, experienceID, variantID, goalID); err != nil {
		return nil, err
	}
	c.logger.Info("approved variant %s of experience %s (%s)", variantID, experienceID, experiment.Name)
	return c.store.GetExperimentByExperienceID(ctx, experienceID)
}

// ConvertVariant re-runs only the promotion call, for an experience that was
// ended remotely but whose winner was never converted.
func (c *Coordinator) ConvertVariant(ctx context.Context, settings models.Setting, experienceID, variantID string) (*models.Experiment, error) {
	if experienceID == "" || variantID == "" {
		return nil, apperr.UserInput("experienceId and variantId are required")
	}

	if _, err := c.approvable(ctx, experienceID, variantID, true); err != nil {
		return nil, err
	}

	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}
	if err := api.ConvertVariation(ctx, experienceID, variantID); err != nil {
		return nil, err
	}

	if err := c.store.CompleteExperiment(ctx, experienceID, variantID, ""); err != nil {
		return nil, err
	}
	c.logger.Info("converted variant %s of experience %s", variantID, experienceID)
	return c.store.GetExperimentByExperienceID(ctx, experienceID)
}

// approvable loads the experiment and checks it can still take a winner.
// allowUnresolved admits a completed experiment that has no winner recorded.
func (c *Coordinator) approvable(ctx context.Context, experienceID, variantID string, allowUnresolved bool) (*models.Experiment, error) {
	experiment, err := c.store.GetExperimentByExperienceID(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	if experiment.Status == models.ExperimentStatusCompleted {
		if experiment.WinnerVariantID != nil {
			return nil, apperr.Conflict("experience %s is already completed with variant %s", experienceID, *experiment.WinnerVariantID)
		}
		if !allowUnresolved {
			return nil, apperr.Conflict("experience %s is already completed", experienceID)
		}
	}

	for _, v := range experiment.Variants {
		if v.VariantID == variantID {
			return experiment, nil
		}
	}
	return nil, apperr.NotFound("variant %s is not part of experience %s", variantID, experienceID)
}
