package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Standard audit actions, used instead of raw strings for consistency.
const (
	AuditUserLogin       = "USER_LOGIN"
	AuditUserImpersonate = "USER_IMPERSONATE"

	AuditCreateUser = "CREATE_USER"
	AuditUpdateUser = "UPDATE_USER"
	AuditDeleteUser = "DELETE_USER"

	AuditCreateMedia  = "CREATE_MEDIA"
	AuditUpdateMedia  = "UPDATE_MEDIA"
	AuditDeleteMedia  = "DELETE_MEDIA"
	AuditArchiveMedia = "ARCHIVE_MEDIA"

	AuditCreateKorda = "CREATE_KORDA"
	AuditUpdateKorda = "UPDATE_KORDA"
	AuditDeleteKorda = "DELETE_KORDA"

	AuditCreateRole = "CREATE_ROLE"
	AuditUpdateRole = "UPDATE_ROLE"
	AuditDeleteRole = "DELETE_ROLE"

	AuditCreateCategory = "CREATE_CATEGORY"
	AuditUpdateCategory = "UPDATE_CATEGORY"
	AuditDeleteCategory = "DELETE_CATEGORY"

	AuditCreatePermission = "CREATE_PERMISSION"
)

// AuditLog is an append-only record of a mutating action.
// Rows are written once and never updated or deleted; there is no UpdatedAt
// and no soft delete column. State snapshots are stored as JSON text.
type AuditLog struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// UserID is the acting user; nil for system actions.
	UserID *string `gorm:"type:varchar(36);column:user_id;index" json:"userId"`
	// Action names the mutation (e.g. CREATE_MEDIA, USER_IMPERSONATE).
	Action string `gorm:"size:100;not null;index" json:"action"`
	// EntityTable is the table of the affected entity (e.g. media_contents).
	EntityTable string `gorm:"size:100;not null;index" json:"entityTable"`
	// EntityID is the ID of the affected record, when known.
	EntityID *string `gorm:"size:100" json:"entityId"`
	// PreviousState is the JSON encoded state before the change (UPDATE/DELETE).
	PreviousState *string `gorm:"type:text" json:"previousState"`
	// NewState is the JSON encoded state after the change (CREATE/UPDATE).
	NewState *string `gorm:"type:text" json:"newState"`
	// IPAddress of the triggering request (IPv4 or IPv6).
	IPAddress *string `gorm:"size:45" json:"ipAddress"`
	// UserAgent of the triggering request.
	UserAgent *string `gorm:"type:text" json:"userAgent"`
	// Metadata carries extra JSON context (e.g. impersonator info).
	Metadata  *string   `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the database table name for the AuditLog model.
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	return nil
}
