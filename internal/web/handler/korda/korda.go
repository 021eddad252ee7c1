// Package korda provides the regional branch (korda) endpoints.
package korda

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
	// Path is the base path for the korda endpoints.
	Path = "/kordas"
)

// Service provides the korda endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type createRequest struct {
	Code     string  `json:"code" validate:"required,max=20,alphanum"`
	Name     string  `json:"name" validate:"required,max=255"`
	City     *string `json:"city" validate:"omitempty,max=255"`
	Province *string `json:"province" validate:"omitempty,max=255"`
	IsActive *bool   `json:"isActive"`
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	City     *string `json:"city" validate:"omitempty,max=255"`
	Province *string `json:"province" validate:"omitempty,max=255"`
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
		mwauth.RequirePermission(coreauth.PermKordasRead), s.List)
	r.Get("/:id",
		mwauth.RequirePermission(coreauth.PermKordasRead), s.Get)
	r.Post(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermKordasCreate), s.Create)
	r.Put("/:id",
		mwauth.RequirePermission(coreauth.PermKordasUpdate), s.Update)
	r.Delete("/:id",
		mwauth.RequirePermission(coreauth.PermKordasDelete), s.Delete)
}

// List returns kordas, paginated, optionally filtered by activation state
// and a free text search over code, name and city.
func (s *Service) List(c *fiber.Ctx) error {
	page, limit := handler.PageParams(c)

	q := s.deps.DB.Model(&models.Korda{})

	if active := c.Query("isActive"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}

	if search := c.Query("search"); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(city) LIKE ?",
			needle, needle, needle)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("korda/list count failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list kordas")
	}

	var kordas []models.Korda
	if err := q.Order("code ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&kordas).Error; err != nil {
		log.Error().Err(err).Msg("korda/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list kordas")
	}

	return response.Paginated(c, kordas, page, limit, total)
}

// Get returns one korda by ID.
func (s *Service) Get(c *fiber.Ctx) error {
	var korda models.Korda
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&korda).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Korda not found")
		}

		log.Error().Err(err).Msg("korda/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load korda")
	}

	return response.Success(c, korda)
}

// Create adds a korda. The code is stored uppercase and must be unique.
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

	code := strings.ToUpper(strings.TrimSpace(req.Code))

	var count int64
	if err := s.deps.DB.Unscoped().Model(&models.Korda{}).
		Where("code = ?", code).Count(&count).Error; err != nil {
		log.Error().Err(err).Msg("korda/create existence check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create korda")
	}

	if count > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Korda code is already taken")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	korda := models.Korda{
		Code:     code,
		Name:     req.Name,
		City:     req.City,
		Province: req.Province,
		IsActive: isActive,
	}

	if err := s.deps.DB.Create(&korda).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Korda code is already taken")
		}

		log.Error().Err(err).Msg("korda/create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create korda")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreateKorda,
		EntityTable: models.Korda{}.TableName(),
		EntityID:    &korda.ID,
		NewState:    korda,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, korda)
}

// Update applies a partial update to a korda. The code is immutable.
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

	var korda models.Korda
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&korda).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Korda not found")
		}

		log.Error().Err(err).Msg("korda/update lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update korda")
	}

	previous := korda

	if req.Name != nil {
		korda.Name = *req.Name
	}

	if req.City != nil {
		korda.City = req.City
	}

	if req.Province != nil {
		korda.Province = req.Province
	}

	if req.IsActive != nil {
		korda.IsActive = *req.IsActive
	}

	if err := s.deps.DB.Save(&korda).Error; err != nil {
		log.Error().Err(err).Msg("korda/update save failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update korda")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateKorda,
		EntityTable:   models.Korda{}.TableName(),
		EntityID:      &korda.ID,
		PreviousState: previous,
		NewState:      korda,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, korda)
}

// Delete soft deletes a korda. A korda with assigned users or media stays.
func (s *Service) Delete(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	var korda models.Korda
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&korda).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Korda not found")
		}

		log.Error().Err(err).Msg("korda/delete lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete korda")
	}

	var assigned int64
	if err := s.deps.DB.Model(&models.User{}).
		Where("korda_id = ?", korda.ID).Count(&assigned).Error; err != nil {
		log.Error().Err(err).Msg("korda/delete assignment check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete korda")
	}

	if assigned > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Korda still has assigned users")
	}

	if err := s.deps.DB.Delete(&korda).Error; err != nil {
		log.Error().Err(err).Msg("korda/delete failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete korda")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditDeleteKorda,
		EntityTable:   models.Korda{}.TableName(),
		EntityID:      &korda.ID,
		PreviousState: korda,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, fiber.Map{"deleted": true})
}
