package auth

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

// Service provides authentication and authorization functionality.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Resolve loads the identity row (soft-deleted rows excluded), its role and
// the role's joined permission names into an AuthUser. Missing and deleted
// identities both return ErrUserNotFound; callers treat that identically to
// authentication failure.
func (s *Service) Resolve(userID string) (*AuthUser, error) {
	var user models.User

	err := s.db.Preload("Role").Where("id = ?", userID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	permissions, err := s.GetUserPermissions(userID)
	if err != nil {
		return nil, err
	}

	return &AuthUser{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		Phone:       user.Phone,
		RoleID:      user.RoleID,
		RoleName:    user.Role.Name,
		KordaID:     user.KordaID,
		IsActive:    user.IsActive,
		Permissions: NewPermissionSet(permissions),
	}, nil
}

// HasPermission checks if a user has a specific permission.
// This works by checking if the user's role has the permission assigned.
func (s *Service) HasPermission(userID string, permission string) (bool, error) {
	var count int64

	err := s.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ? AND permissions.name = ?", userID, permission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role permission: %w", err)
	}

	return count > 0, nil
}

// GetUserPermissions retrieves all permission names granted through the user's role.
func (s *Service) GetUserPermissions(userID string) ([]string, error) {
	var permissions []string

	err := s.db.Table("permissions").
		Select("DISTINCT permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ?", userID).
		Pluck("permissions.name", &permissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}

	return permissions, nil
}

// Authenticate authenticates a user by email and password.
// The error distinguishes outcomes for the caller; the HTTP layer collapses
// ErrUserNotFound and ErrInvalidPassword into one generic message to prevent
// account enumeration.
func (s *Service) Authenticate(email, password string) (*models.User, error) {
	var user models.User

	err := s.db.Preload("Role").Preload("Korda").
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrUserAccountDisabled
	}

	// No stored hash means password auth is categorically rejected.
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		return nil, ErrNoPasswordSet
	}

	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return &user, nil
}

// ChangePassword changes a user's password after verifying the current one.
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	var user models.User

	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("failed to query user: %w", err)
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	hashed := models.HashPassword(newPassword)

	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hashed).Error
}
