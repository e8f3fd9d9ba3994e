package database

import (
	"context"
	"errors"
	"fmt"

	"crosplit/internal/apperr"
	"crosplit/internal/models"

	"gorm.io/gorm"
)

// GetSettings loads the singleton settings row. A missing row is a
// configuration error: callers must not proceed with defaults.
func (d *Database) GetSettings(ctx context.Context) (models.Setting, error) {
	var setting models.Setting
	err := d.DB.WithContext(ctx).First(&setting, "id = ?", models.SettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Setting{}, apperr.Configuration("settings not found")
	}
	if err != nil {
		return models.Setting{}, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return setting, nil
}

// SaveSettings writes the singleton row, creating it on first use.
func (d *Database) SaveSettings(ctx context.Context, setting models.Setting) (models.Setting, error) {
	setting.ID = models.SettingID

	var existing models.Setting
	err := d.DB.WithContext(ctx).First(&existing, "id = ?", models.SettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := d.DB.WithContext(ctx).Create(&setting).Error; err != nil {
			return models.Setting{}, fmt.Errorf("failed to create settings: %w", err)
		}
		return setting, nil
	} else if err != nil {
		return models.Setting{}, fmt.Errorf("failed to fetch settings: %w", err)
	}

	setting.CreatedAt = existing.CreatedAt
	if err := d.DB.WithContext(ctx).Save(&setting).Error; err != nil {
		return models.Setting{}, fmt.Errorf("failed to update settings: %w", err)
	}
	return setting, nil
}
