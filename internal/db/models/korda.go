package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Korda represents a regional branch (Koordinator Daerah) of the organization.
// Users and media rows reference a korda for branch scoping; the national
// (DPP) level is represented by the absence of a reference, not by a row.
type Korda struct {
	// ID is the unique identifier for the korda.
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Code is the unique short code, uppercase (e.g. BEKASI, JAKARTA-TIMUR).
	Code string `gorm:"uniqueIndex;size:20;not null" json:"code"`
	// Name is the display name (e.g. "Korda Bekasi").
	Name string `gorm:"size:255;not null" json:"name"`
	// City is the optional city name.
	City *string `gorm:"size:100" json:"city"`
	// Province is the optional province name.
	Province *string `gorm:"size:100" json:"province"`
	// IsActive indicates whether the branch is active.
	IsActive bool `gorm:"default:true;not null" json:"isActive"`
	// CreatedAt is the timestamp when the korda was created (managed by GORM).
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the timestamp when the korda was last updated (managed by GORM).
	UpdatedAt time.Time `json:"updatedAt"`
	// DeletedAt is the soft delete timestamp (managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the database table name for the Korda model.
func (Korda) TableName() string {
	return "kordas"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (k *Korda) BeforeCreate(_ *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}

	return nil
}
