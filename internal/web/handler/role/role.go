// Package role provides the role management endpoints.
//
// System roles (is_system = true) can not be renamed or deleted; only their
// permission assignment may change.
package role

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/audit"
	coreauth "github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler"
	mwauth "github.com/nasuha-connect/nasuha-connect/internal/web/middleware/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const (
	// Path is the base path for the role endpoints.
	Path = "/roles"
)

// Service provides the role management endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type createRequest struct {
	Name          string   `json:"name" validate:"required,max=100"`
	DisplayName   string   `json:"displayName" validate:"required,max=255"`
	Description   *string  `json:"description" validate:"omitempty,max=500"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,uuid"`
}

type updateRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type assignRequest struct {
	PermissionIDs []string `json:"permissionIds" validate:"required,dive,uuid"`
}

// Init registers routes.
func (s *Service) Init(api fiber.Router, deps *handler.Deps) {
	if api == nil || deps == nil || deps.DB == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.deps = deps
	s.validator = validator.New()

	r := api.Group(Path, deps.Authn)

	r.Get(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermRolesRead), s.List)
	r.Get("/:id",
		mwauth.RequirePermission(coreauth.PermRolesRead), s.Get)
	r.Post(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermRolesCreate), s.Create)
	r.Put("/:id",
		mwauth.RequirePermission(coreauth.PermRolesUpdate), s.Update)
	r.Put("/:id/permissions",
		mwauth.RequirePermission(coreauth.PermRolesUpdate), s.AssignPermissions)
	r.Delete("/:id",
		mwauth.RequirePermission(coreauth.PermRolesDelete), s.Delete)
}

// List returns all roles with their permissions.
func (s *Service) List(c *fiber.Ctx) error {
	var roles []models.Role
	if err := s.deps.DB.Preload("Permissions").
		Order("name ASC").Find(&roles).Error; err != nil {
		log.Error().Err(err).Msg("role/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list roles")
	}

	return response.Success(c, roles)
}

// Get returns one role with its permissions.
func (s *Service) Get(c *fiber.Ctx) error {
	var role models.Role
	if err := s.deps.DB.Preload("Permissions").
		Where("id = ?", c.Params("id")).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Role not found")
		}

		log.Error().Err(err).Msg("role/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load role")
	}

	return response.Success(c, role)
}

// Create creates a role and optionally assigns permissions.
func (s *Service) Create(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(createRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	var count int64
	if err := s.deps.DB.Unscoped().Model(&models.Role{}).
		Where("name = ?", req.Name).Count(&count).Error; err != nil {
		log.Error().Err(err).Msg("role/create existence check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create role")
	}

	if count > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Role name is already taken")
	}

	role := models.Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	}

	if len(req.PermissionIDs) > 0 {
		var perms []models.Permission
		if err := s.deps.DB.Where("id IN ?", req.PermissionIDs).
			Find(&perms).Error; err != nil {
			log.Error().Err(err).Msg("role/create permission lookup failed")

			return response.Error(c, fiber.StatusInternalServerError,
				response.CodeDatabaseError, "Failed to create role")
		}

		if len(perms) != len(req.PermissionIDs) {
			return response.Error(c, fiber.StatusBadRequest,
				response.CodeInvalidInput, "One or more permissions do not exist")
		}

		role.Permissions = perms
	}

	if err := s.deps.DB.Create(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Role name is already taken")
		}

		log.Error().Err(err).Msg("role/create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create role")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreateRole,
		EntityTable: models.Role{}.TableName(),
		EntityID:    &role.ID,
		NewState:    role,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, role)
}

// Update changes a role's display name or description. The machine name of
// any role and every attribute of a system role are immutable.
func (s *Service) Update(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(updateRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	var role models.Role
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Role not found")
		}

		log.Error().Err(err).Msg("role/update lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update role")
	}

	if role.IsSystem {
		return response.Error(c, fiber.StatusForbidden,
			response.CodeForbidden, "System roles can not be modified")
	}

	previous := role

	if req.DisplayName != nil {
		role.DisplayName = *req.DisplayName
	}

	if req.Description != nil {
		role.Description = req.Description
	}

	if err := s.deps.DB.Save(&role).Error; err != nil {
		log.Error().Err(err).Msg("role/update save failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update role")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateRole,
		EntityTable:   models.Role{}.TableName(),
		EntityID:      &role.ID,
		PreviousState: previous,
		NewState:      role,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, role)
}

// AssignPermissions replaces the role's permission set with the given IDs.
// Allowed on system roles too; permission grants are the one mutable part of
// a system role.
func (s *Service) AssignPermissions(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(assignRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	var role models.Role
	if err := s.deps.DB.Preload("Permissions").
		Where("id = ?", c.Params("id")).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Role not found")
		}

		log.Error().Err(err).Msg("role/assign lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to assign permissions")
	}

	var perms []models.Permission
	if err := s.deps.DB.Where("id IN ?", req.PermissionIDs).
		Find(&perms).Error; err != nil {
		log.Error().Err(err).Msg("role/assign permission lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to assign permissions")
	}

	if len(perms) != len(req.PermissionIDs) {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "One or more permissions do not exist")
	}

	previous := role

	if err := s.deps.DB.Model(&role).
		Association("Permissions").Replace(perms); err != nil {
		log.Error().Err(err).Msg("role/assign replace failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to assign permissions")
	}

	role.Permissions = perms

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateRole,
		EntityTable:   models.Role{}.TableName(),
		EntityID:      &role.ID,
		PreviousState: previous,
		NewState:      role,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, role)
}

// Delete soft deletes a role. System roles and roles still assigned to users
// can not be deleted.
func (s *Service) Delete(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	var role models.Role
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Role not found")
		}

		log.Error().Err(err).Msg("role/delete lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete role")
	}

	if role.IsSystem {
		return response.Error(c, fiber.StatusForbidden,
			response.CodeForbidden, "System roles can not be deleted")
	}

	var assigned int64
	if err := s.deps.DB.Model(&models.User{}).
		Where("role_id = ?", role.ID).Count(&assigned).Error; err != nil {
		log.Error().Err(err).Msg("role/delete assignment check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete role")
	}

	if assigned > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Role is still assigned to users")
	}

	if err := s.deps.DB.Delete(&role).Error; err != nil {
		log.Error().Err(err).Msg("role/delete failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete role")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditDeleteRole,
		EntityTable:   models.Role{}.TableName(),
		EntityID:      &role.ID,
		PreviousState: role,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, fiber.Map{"deleted": true})
}
