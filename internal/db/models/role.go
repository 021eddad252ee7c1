package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents a role in the role-based access control (RBAC) system.
// Roles are data rows, not compiled enumerations: they bundle permissions
// and are managed at runtime. Examples include "super_admin" and
// "korda_admin".
type Role struct {
	// ID is the unique identifier for the role.
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Name is the unique machine name of the role (lowercase with underscores).
	Name string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	// DisplayName is the human readable role name (e.g. "Super Admin").
	DisplayName string `gorm:"size:100;not null" json:"displayName"`
	// Description provides a human-readable description of the role's purpose.
	Description *string `gorm:"type:text" json:"description"`
	// IsSystem indicates if this is a system role that cannot be modified or deleted.
	IsSystem bool `gorm:"default:false;not null" json:"isSystem"`
	// Permissions is the set of permissions granted through the role_permissions join.
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time `json:"updatedAt"`
	// DeletedAt is the soft delete timestamp (managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the database table name for the Role model.
// This overrides GORM's default pluralized table naming.
func (Role) TableName() string {
	return "roles"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (r *Role) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	return nil
}
