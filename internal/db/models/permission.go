package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission represents an atomic named capability in the authorization system.
// Names follow the module:action convention (e.g. "media:create").
// Permissions are additive only: holding one never revokes another.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Name is the globally unique permission identifier in module:action format.
	Name string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	// DisplayName is the human readable permission name (e.g. "Create Media").
	DisplayName string `gorm:"size:100;not null" json:"displayName"`
	// Module groups permissions by feature area (e.g. "media", "users").
	Module string `gorm:"size:50;not null" json:"module"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the database table name for the Permission model.
// This overrides GORM's default pluralized table naming.
func (Permission) TableName() string {
	return "permissions"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (p *Permission) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	return nil
}
