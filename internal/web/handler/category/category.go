// Package category provides the media category endpoints.
package category

import (
	"errors"
	"regexp"
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
	// Path is the base path for the category endpoints.
	Path = "/categories"
)

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a category name.
func Slugify(name string) string {
	slug := slugCleaner.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// Service provides the media category endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type createRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Slug        *string `json:"slug" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=500"`
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
		mwauth.RequirePermission(coreauth.PermMediaRead), s.List)
	r.Get("/:id",
		mwauth.RequirePermission(coreauth.PermMediaRead), s.Get)
	r.Post(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermMediaCreate), s.Create)
	r.Put("/:id",
		mwauth.RequirePermission(coreauth.PermMediaUpdate), s.Update)
	r.Delete("/:id",
		mwauth.RequirePermission(coreauth.PermMediaDelete), s.Delete)
}

// List returns all categories ordered by name.
func (s *Service) List(c *fiber.Ctx) error {
	var categories []models.MediaCategory
	if err := s.deps.DB.Order("name ASC").Find(&categories).Error; err != nil {
		log.Error().Err(err).Msg("category/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list categories")
	}

	return response.Success(c, categories)
}

// Get returns one category by ID.
func (s *Service) Get(c *fiber.Ctx) error {
	var category models.MediaCategory
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Category not found")
		}

		log.Error().Err(err).Msg("category/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load category")
	}

	return response.Success(c, category)
}

// Create adds a category. The slug defaults to a cleaned form of the name
// and must be unique.
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

	slug := Slugify(req.Name)
	if req.Slug != nil && *req.Slug != "" {
		slug = Slugify(*req.Slug)
	}

	if slug == "" {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Category name yields an empty slug")
	}

	var count int64
	if err := s.deps.DB.Unscoped().Model(&models.MediaCategory{}).
		Where("slug = ?", slug).Count(&count).Error; err != nil {
		log.Error().Err(err).Msg("category/create existence check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create category")
	}

	if count > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Category slug is already taken")
	}

	category := models.MediaCategory{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
	}

	if err := s.deps.DB.Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Category slug is already taken")
		}

		log.Error().Err(err).Msg("category/create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create category")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreateCategory,
		EntityTable: models.MediaCategory{}.TableName(),
		EntityID:    &category.ID,
		NewState:    category,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, category)
}

// Update changes a category's name or description. The slug is immutable so
// stored links keep working.
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

	var category models.MediaCategory
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Category not found")
		}

		log.Error().Err(err).Msg("category/update lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update category")
	}

	previous := category

	if req.Name != nil {
		category.Name = *req.Name
	}

	if req.Description != nil {
		category.Description = req.Description
	}

	if err := s.deps.DB.Save(&category).Error; err != nil {
		log.Error().Err(err).Msg("category/update save failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update category")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateCategory,
		EntityTable:   models.MediaCategory{}.TableName(),
		EntityID:      &category.ID,
		PreviousState: previous,
		NewState:      category,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, category)
}

// Delete soft deletes a category that has no media contents left.
func (s *Service) Delete(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	var category models.MediaCategory
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Category not found")
		}

		log.Error().Err(err).Msg("category/delete lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete category")
	}

	var used int64
	if err := s.deps.DB.Model(&models.MediaContent{}).
		Where("category_id = ?", category.ID).Count(&used).Error; err != nil {
		log.Error().Err(err).Msg("category/delete usage check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete category")
	}

	if used > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Category still has media contents")
	}

	if err := s.deps.DB.Delete(&category).Error; err != nil {
		log.Error().Err(err).Msg("category/delete failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete category")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditDeleteCategory,
		EntityTable:   models.MediaCategory{}.TableName(),
		EntityID:      &category.ID,
		PreviousState: category,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, fiber.Map{"deleted": true})
}
