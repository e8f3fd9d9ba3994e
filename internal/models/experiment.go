package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Experiment is a split-URL test registered with Convert for one OriginalPage.
type Experiment struct {
	ID              string           `json:"id" gorm:"type:uuid;primaryKey"`
	ExperienceID    string           `json:"experience_id" gorm:"uniqueIndex;not null"`
	LocationID      string           `json:"location_id"`
	Name            string           `json:"name" gorm:"not null"`
	OriginalPageID  string           `json:"original_page_id" gorm:"type:uuid;index;not null"`
	Status          ExperimentStatus `json:"status" gorm:"not null"`
	WinnerVariantID *string          `json:"winner_variant_id"`
	WinningGoalID   *string          `json:"winning_goal_id"`
	CompletedAt     *time.Time       `json:"completed_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Relations
	Variants []Variant `json:"variants,omitempty" gorm:"foreignKey:ExperienceID;references:ExperienceID"`
}

type ExperimentStatus string

const (
	ExperimentStatusActive    ExperimentStatus = "active"
	ExperimentStatusPaused    ExperimentStatus = "paused"
	ExperimentStatusArchived  ExperimentStatus = "archived"
	ExperimentStatusCompleted ExperimentStatus = "completed"
)

// Variant is one arm of an Experiment, including the "Original".
type Variant struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	VariantID    string         `json:"variant_id" gorm:"index;not null"`
	ExperienceID string         `json:"experience_id" gorm:"index;not null"`
	Name         string         `json:"name" gorm:"not null"`
	URL          string         `json:"url" gorm:"index"`
	Changes      datatypes.JSON `json:"changes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// OriginalVariantName names the control arm.
const OriginalVariantName = "Original"

func (e *Experiment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = ExperimentStatusActive
	}
	return nil
}

func (v *Variant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
