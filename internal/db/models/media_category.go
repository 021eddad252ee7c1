package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaCategory is an optional categorization for media contents.
// Categories are dynamic data and can be added at any time.
type MediaCategory struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Name is the display name (e.g. "TSN Flyers").
	Name string `gorm:"size:100;not null" json:"name"`
	// Slug is the unique URL-friendly identifier.
	Slug        string         `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Description *string        `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the database table name for the MediaCategory model.
func (MediaCategory) TableName() string {
	return "media_categories"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (m *MediaCategory) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	return nil
}
