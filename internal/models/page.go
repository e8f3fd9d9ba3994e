package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OriginalPage mirrors a merchant's existing storefront page.
type OriginalPage struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	PageID         string    `json:"page_id" gorm:"uniqueIndex;not null"`
	Title          string    `json:"title" gorm:"not null"`
	Handle         string    `json:"handle" gorm:"index;not null"`
	BodyHTML       string    `json:"body_html" gorm:"type:text"`
	TemplateSuffix string    `json:"template_suffix"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Duplicates []DuplicatePage `json:"duplicates,omitempty" gorm:"foreignKey:OriginalPageID"`
	Experiment *Experiment     `json:"experiment,omitempty" gorm:"foreignKey:OriginalPageID"`
}

// DuplicatePage is a generated variant of an OriginalPage.
type DuplicatePage struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	PageID         string    `json:"page_id" gorm:"uniqueIndex;not null"`
	Title          string    `json:"title" gorm:"not null"`
	Handle         string    `json:"handle" gorm:"index;not null"`
	BodyHTML       string    `json:"body_html" gorm:"type:text"`
	OriginalPageID string    `json:"original_page_id" gorm:"type:uuid;index;not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *OriginalPage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (p *DuplicatePage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
