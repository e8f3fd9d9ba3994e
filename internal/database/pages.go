package database

import (
	"context"
	"errors"
	"fmt"

	"crosplit/internal/apperr"
	"crosplit/internal/models"

	"gorm.io/gorm"
)

// UpsertOriginalPage creates or refreshes the mirror row keyed by PageID.
// The returned row carries the persisted ID.
func (d *Database) UpsertOriginalPage(ctx context.Context, page models.OriginalPage) (*models.OriginalPage, error) {
	var existing models.OriginalPage
	err := d.DB.WithContext(ctx).Where("page_id = ?", page.PageID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := d.DB.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, fmt.Errorf("failed to create original page: %w", err)
		}
		return &page, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch original page: %w", err)
	}

	existing.Title = page.Title
	existing.Handle = page.Handle
	existing.BodyHTML = page.BodyHTML
	existing.TemplateSuffix = page.TemplateSuffix
	if err := d.DB.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update original page: %w", err)
	}
	return &existing, nil
}

func (d *Database) UpsertDuplicatePage(ctx context.Context, page models.DuplicatePage) (*models.DuplicatePage, error) {
	var existing models.DuplicatePage
	err := d.DB.WithContext(ctx).Where("page_id = ?", page.PageID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := d.DB.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, fmt.Errorf("failed to create duplicate page: %w", err)
		}
		return &page, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch duplicate page: %w", err)
	}

	page.ID = existing.ID
	page.CreatedAt = existing.CreatedAt
	if err := d.DB.WithContext(ctx).Save(&page).Error; err != nil {
		return nil, fmt.Errorf("failed to update duplicate page: %w", err)
	}
	return &page, nil
}

func (d *Database) GetOriginalPageByPageID(ctx context.Context, pageID string) (*models.OriginalPage, error) {
	var page models.OriginalPage
	err := d.DB.WithContext(ctx).Where("page_id = ?", pageID).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("original page %s not found", pageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch original page: %w", err)
	}
	return &page, nil
}

func (d *Database) GetDuplicatePageByPageID(ctx context.Context, pageID string) (*models.DuplicatePage, error) {
	var page models.DuplicatePage
	err := d.DB.WithContext(ctx).Where("page_id = ?", pageID).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("duplicate page %s not found", pageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch duplicate page: %w", err)
	}
	return &page, nil
}

func (d *Database) DeleteDuplicatePage(ctx context.Context, pageID string) error {
	if err := d.DB.WithContext(ctx).Where("page_id = ?", pageID).Delete(&models.DuplicatePage{}).Error; err != nil {
		return fmt.Errorf("failed to delete duplicate page: %w", err)
	}
	return nil
}

// PageFilter narrows ListOriginalPages.
type PageFilter struct {
	Search   string
	Page     int
	PageSize int
}

// ListOriginalPages returns original pages that have at least one duplicate,
// with duplicates and experiment preloaded.
func (d *Database) ListOriginalPages(ctx context.Context, filter PageFilter) ([]models.OriginalPage, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	query := d.DB.WithContext(ctx).Model(&models.OriginalPage{}).
		Where("EXISTS (SELECT 1 FROM duplicate_pages dp WHERE dp.original_page_id = original_pages.id)")

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) OR LOWER(page_id) LIKE LOWER(?) OR LOWER(handle) LIKE LOWER(?)", like, like, like)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}

	var pages []models.OriginalPage
	err := query.
		Preload("Duplicates").
		Preload("Experiment").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&pages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pages: %w", err)
	}
	return pages, total, nil
}
