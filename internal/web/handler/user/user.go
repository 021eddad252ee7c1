// Package user provides the user management endpoints.
package user

import (
	"errors"
	"strings"

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
	// Path is the base path for the user endpoints.
	Path = "/users"
)

// Service provides the user management endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type updateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	FullName *string `json:"fullName" validate:"omitempty,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,min=10,max=15"`
	RoleID   *string `json:"roleId" validate:"omitempty,uuid"`
	KordaID  *string `json:"kordaId" validate:"omitempty,uuid"`
	IsActive *bool   `json:"isActive"`
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
		mwauth.RequirePermission(coreauth.PermUsersRead), s.List)
	r.Get("/:id",
		mwauth.RequirePermission(coreauth.PermUsersRead), s.Get)
	r.Put("/:id",
		mwauth.RequirePermission(coreauth.PermUsersUpdate), s.Update)
	r.Delete("/:id",
		mwauth.RequirePermission(coreauth.PermUsersDelete), s.Delete)
	r.Patch("/:id/activate",
		mwauth.RequirePermission(coreauth.PermUsersUpdate), s.SetActive)
}

// List returns users, paginated, optionally filtered by role, korda,
// activation state and a free text search over email and full name.
func (s *Service) List(c *fiber.Ctx) error {
	page, limit := handler.PageParams(c)

	q := s.deps.DB.Model(&models.User{}).Preload("Role").Preload("Korda")

	if roleID := c.Query("roleId"); roleID != "" {
		q = q.Where("role_id = ?", roleID)
	}

	if kordaID := c.Query("kordaId"); kordaID != "" {
		q = q.Where("korda_id = ?", kordaID)
	}

	if active := c.Query("isActive"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}

	if search := c.Query("search"); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", needle, needle)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("user/list count failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list users")
	}

	var users []models.User
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error; err != nil {
		log.Error().Err(err).Msg("user/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list users")
	}

	return response.Paginated(c, users, page, limit, total)
}

// Get returns a single user by ID with role and korda.
func (s *Service) Get(c *fiber.Ctx) error {
	var user models.User
	if err := s.deps.DB.Preload("Role").Preload("Korda").
		Where("id = ?", c.Params("id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("user/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load user")
	}

	return response.Success(c, user)
}

// Update applies a partial update to a user. Requires users:update.
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

	var user models.User
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("user/update lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update user")
	}

	previous := user

	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}

	if req.Phone != nil {
		normalized := models.NormalizePhone(*req.Phone)
		user.Phone = &normalized
	}

	if req.RoleID != nil {
		var role models.Role
		if err := s.deps.DB.Where("id = ?", *req.RoleID).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.Error(c, fiber.StatusBadRequest,
					response.CodeInvalidInput, "Invalid role")
			}

			log.Error().Err(err).Msg("user/update role lookup failed")

			return response.Error(c, fiber.StatusInternalServerError,
				response.CodeDatabaseError, "Failed to update user")
		}

		user.RoleID = *req.RoleID
	}

	if req.KordaID != nil {
		user.KordaID = req.KordaID
	}

	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.deps.DB.Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Email is already registered")
		}

		log.Error().Err(err).Msg("user/update save failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update user")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateUser,
		EntityTable:   models.User{}.TableName(),
		EntityID:      &user.ID,
		PreviousState: previous,
		NewState:      user,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, user)
}

// Delete soft deletes a user. Requires users:delete. Self-deletion is
// rejected so an admin can not lock themselves out.
func (s *Service) Delete(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	id := c.Params("id")
	if id == currentUser.ID {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "You can not delete your own account")
	}

	var user models.User
	if err := s.deps.DB.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("user/delete lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete user")
	}

	if err := s.deps.DB.Delete(&user).Error; err != nil {
		log.Error().Err(err).Msg("user/delete failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete user")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditDeleteUser,
		EntityTable:   models.User{}.TableName(),
		EntityID:      &user.ID,
		PreviousState: user,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, fiber.Map{"deleted": true})
}

// SetActive toggles a user's activation flag. Requires users:update.
func (s *Service) SetActive(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(struct {
		IsActive *bool `json:"isActive" validate:"required"`
	})
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	var user models.User
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("user/activate lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update user")
	}

	previous := user
	user.IsActive = *req.IsActive

	if err := s.deps.DB.Model(&user).Update("is_active", user.IsActive).Error; err != nil {
		log.Error().Err(err).Msg("user/activate update failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update user")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateUser,
		EntityTable:   models.User{}.TableName(),
		EntityID:      &user.ID,
		PreviousState: previous,
		NewState:      user,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, user)
}
