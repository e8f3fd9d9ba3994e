package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crosplit/internal/apperr"
	"crosplit/internal/models"

	"gorm.io/gorm"
)

// CreateExperiment persists an experiment and its variant rows in one transaction.
func (d *Database) CreateExperiment(ctx context.Context, experiment *models.Experiment, variants []models.Variant) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Variants").Create(experiment).Error; err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}
		for i := range variants {
			variants[i].ExperienceID = experiment.ExperienceID
			if err := tx.Create(&variants[i]).Error; err != nil {
				return fmt.Errorf("failed to create variant %q: %w", variants[i].Name, err)
			}
		}
		experiment.Variants = variants
		return nil
	})
}

func (d *Database) GetExperimentByExperienceID(ctx context.Context, experienceID string) (*models.Experiment, error) {
	var experiment models.Experiment
	err := d.DB.WithContext(ctx).Preload("Variants").Where("experience_id = ?", experienceID).First(&experiment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("experiment %s not found", experienceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experiment: %w", err)
	}
	return &experiment, nil
}

// GetOpenExperimentForPage returns the non-completed experiment of an original page, or nil.
func (d *Database) GetOpenExperimentForPage(ctx context.Context, originalPageID string) (*models.Experiment, error) {
	var experiment models.Experiment
	err := d.DB.WithContext(ctx).
		Where("original_page_id = ? AND status <> ?", originalPageID, models.ExperimentStatusCompleted).
		First(&experiment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experiment: %w", err)
	}
	return &experiment, nil
}

// ListExperiments returns experiments in the given statuses, oldest first.
func (d *Database) ListExperiments(ctx context.Context, statuses ...models.ExperimentStatus) ([]models.Experiment, error) {
	var experiments []models.Experiment
	query := d.DB.WithContext(ctx).Order("created_at ASC")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Find(&experiments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch experiments: %w", err)
	}
	return experiments, nil
}

// FindVariantByURL returns the variant whose redirect target is url.
func (d *Database) FindVariantByURL(ctx context.Context, url string) (*models.Variant, error) {
	var variant models.Variant
	err := d.DB.WithContext(ctx).Where("url = ?", url).Order("created_at DESC").First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no variant registered for %s", url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variant: %w", err)
	}
	return &variant, nil
}

func (d *Database) CountVariants(ctx context.Context, experienceID string) (int64, error) {
	var count int64
	if err := d.DB.WithContext(ctx).Model(&models.Variant{}).Where("experience_id = ?", experienceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count variants: %w", err)
	}
	return count, nil
}

func (d *Database) DeleteVariant(ctx context.Context, id string) error {
	if err := d.DB.WithContext(ctx).Delete(&models.Variant{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete variant: %w", err)
	}
	return nil
}

// DeleteExperiment removes an experiment and all of its variant rows.
func (d *Database) DeleteExperiment(ctx context.Context, experienceID string) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("experience_id = ?", experienceID).Delete(&models.Variant{}).Error; err != nil {
			return fmt.Errorf("failed to delete variants: %w", err)
		}
		if err := tx.Where("experience_id = ?", experienceID).Delete(&models.Experiment{}).Error; err != nil {
			return fmt.Errorf("failed to delete experiment: %w", err)
		}
		return nil
	})
}

func (d *Database) UpdateExperimentStatus(ctx context.Context, experienceID string, status models.ExperimentStatus) error {
	err := d.DB.WithContext(ctx).Model(&models.Experiment{}).
		Where("experience_id = ?", experienceID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	return nil
}

// CompleteExperiment marks an experiment completed with its declared winner.
func (d *Database) CompleteExperiment(ctx context.Context, experienceID, variantID, goalID string) error {
	updates := map[string]interface{}{
		"status":            models.ExperimentStatusCompleted,
		"winner_variant_id": variantID,
		"completed_at":      time.Now(),
	}
	if goalID != "" {
		updates["winning_goal_id"] = goalID
	}
	err := d.DB.WithContext(ctx).Model(&models.Experiment{}).
		Where("experience_id = ?", experienceID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to complete experiment: %w", err)
	}
	return nil
}

// ExperimentsWithPages pairs every open experiment with its original page.
func (d *Database) ExperimentsWithPages(ctx context.Context) ([]models.OriginalPage, error) {
	var pages []models.OriginalPage
	err := d.DB.WithContext(ctx).
		Preload("Experiment", "status = ?", models.ExperimentStatusActive).
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pages: %w", err)
	}

	linked := pages[:0]
	for _, p := range pages {
		if p.Experiment != nil {
			linked = append(linked, p)
		}
	}
	return linked, nil
}
