package models

import (
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// User represents a member account in the system.
// Users authenticate with email and password and are assigned exactly one
// role. A nil KordaID means the user acts at national (DPP) scope.
type User struct {
	// ID is the unique identifier for the user.
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Email is the unique login email, stored lowercased.
	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	// FullName is the user's full name.
	FullName string `gorm:"size:255;not null" json:"fullName"`
	// Phone is the optional phone number, normalized to the 08 format.
	Phone *string `gorm:"size:20" json:"phone"`
	// PasswordHash is the Argon2id hashed password.
	// Nil for accounts provisioned without a password (social login).
	PasswordHash *string `gorm:"type:text" json:"-"`
	// RoleID is the ID of the role assigned to this user.
	RoleID string `gorm:"type:varchar(36);column:role_id;not null" json:"roleId"`
	// Role is the associated role (enforced with a foreign key constraint).
	Role Role `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE" json:"role,omitempty"`
	// KordaID scopes the user to a regional branch; nil means national scope.
	KordaID *string `gorm:"type:varchar(36);column:korda_id" json:"kordaId"`
	// Korda is the associated branch, when scoped.
	Korda *Korda `gorm:"foreignKey:KordaID;references:ID" json:"korda,omitempty"`
	// IsActive indicates whether the account may authenticate.
	IsActive bool `gorm:"default:true;not null" json:"isActive"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time `json:"updatedAt"`
	// DeletedAt is the soft delete timestamp (managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	return nil
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating user passwords.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// A user without a stored hash can never pass password verification.
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, *u.PasswordHash)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}

// NormalizePhone converts Indonesian phone numbers of any common form
// (+62..., 62..., 08..., 8...) to the canonical 08 format.
func NormalizePhone(phone string) string {
	var digits strings.Builder

	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()

	switch {
	case strings.HasPrefix(d, "62"):
		return "0" + d[2:]
	case strings.HasPrefix(d, "0"):
		return d
	default:
		return "0" + d
	}
}
