package experiment

import (
	"context"
	"errors"
	"net/http"

	"crosplit/internal/apperr"
	"crosplit/internal/models"
	"crosplit/internal/services/shopify"
)

type DeleteResult struct {
	PageID            string `json:"page_id"`
	ExperienceID      string `json:"experience_id,omitempty"`
	VariantID         string `json:"variant_id,omitempty"`
	ExperimentRemoved bool   `json:"experiment_removed"`
}

// DeleteDuplicate removes a duplicate page from the storefront and retires its
// arm. When only the original arm would remain the whole experience is paused,
// archived and deleted. Local rows are only removed after the remote calls succeed.
// A page or experience already gone remotely counts as deleted, so a failed
// run can be retried and resumes where it stopped.
func (c *Coordinator) DeleteDuplicate(ctx context.Context, pages PageService, settings models.Setting, pageRef string) (*DeleteResult, error) {
	numericID, err := shopify.ParsePageID(pageRef)
	if err != nil {
		return nil, err
	}
	pageGID := shopify.PageGID(numericID)

	// Only pages this app created may be deleted.
	duplicate, err := c.store.GetDuplicatePageByPageID(ctx, pageGID)
	if err != nil {
		return nil, err
	}

	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}

	if err := pages.DeletePage(ctx, numericID); err != nil {
		if !goneRemotely(err) {
			return nil, err
		}
		c.logger.Warn("duplicate page %s (%s) already deleted from %s", pageGID, duplicate.Handle, pages.ShopDomain())
	} else {
		c.logger.Info("deleted duplicate page %s (%s) from %s", pageGID, duplicate.Handle, pages.ShopDomain())
	}

	result := &DeleteResult{PageID: pageGID}

	variant, err := c.store.FindVariantByURL(ctx, settings.PageURL(pages.ShopDomain(), duplicate.Handle))
	if apperr.Is(err, apperr.KindNotFound) {
		// The page is gone remotely, so its mirror row goes too.
		if derr := c.store.DeleteDuplicatePage(ctx, pageGID); derr != nil {
			return nil, derr
		}
		return result, err
	}
	if err != nil {
		return nil, err
	}
	result.ExperienceID = variant.ExperienceID
	result.VariantID = variant.VariantID

	remaining, err := c.store.CountVariants(ctx, variant.ExperienceID)
	if err != nil {
		return nil, err
	}

	if remaining <= 2 {
		if err := c.retireExperience(ctx, api, variant.ExperienceID); err != nil {
			return nil, err
		}
		if err := c.store.DeleteExperiment(ctx, variant.ExperienceID); err != nil {
			return nil, err
		}
		result.ExperimentRemoved = true
	} else {
		if err := api.DeleteVariation(ctx, variant.ExperienceID, variant.VariantID); err != nil && !goneRemotely(err) {
			return nil, err
		}
		if err := c.store.DeleteVariant(ctx, variant.ID); err != nil {
			return nil, err
		}
	}

	if err := c.store.DeleteDuplicatePage(ctx, pageGID); err != nil {
		return nil, err
	}
	return result, nil
}

// retirementSteps are the remote transitions before an experience may be deleted, in order.
var retirementSteps = []models.ExperimentStatus{
	models.ExperimentStatusPaused,
	models.ExperimentStatusArchived,
}

// retireExperience walks an experience through paused and archived before
// deleting it. Each transition is recorded locally, and transitions the local
// row has already reached are skipped.
func (c *Coordinator) retireExperience(ctx context.Context, api ExperienceAPI, experienceID string) error {
	exp, err := c.store.GetExperimentByExperienceID(ctx, experienceID)
	if err != nil {
		return err
	}

	reached := -1
	for i, status := range retirementSteps {
		if exp.Status == status {
			reached = i
		}
	}

	for _, status := range retirementSteps[reached+1:] {
		if err := api.UpdateExperienceStatus(ctx, experienceID, string(status)); err != nil {
			return err
		}
		if err := c.store.UpdateExperimentStatus(ctx, experienceID, status); err != nil {
			return err
		}
	}

	if err := api.DeleteExperience(ctx, experienceID); err != nil && !goneRemotely(err) {
		return err
	}
	return nil
}

// goneRemotely reports whether err is a 404 from a remote API.
func goneRemotely(err error) bool {
	var appErr *apperr.Error
	return errors.As(err, &appErr) && appErr.Kind == apperr.KindUpstream && appErr.Status == http.StatusNotFound
}
