// Package media provides the media library endpoints.
//
// Branch scoping: an identity assigned to a korda may only create and mutate
// rows of that korda. National identities (no korda) are unrestricted. The
// predicate is evaluated against the row's korda on every mutation; a scoped
// mutation of a foreign row fails with 403 and leaves the row unchanged.
package media

import (
	"errors"
	"strings"
	"time"

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
	// Path is the base path for the media endpoints.
	Path = "/media"
)

// Service provides the media library endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type createRequest struct {
	Title         string  `json:"title" validate:"required,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=5000"`
	Type          string  `json:"type" validate:"required"`
	FileURL       *string `json:"fileUrl" validate:"omitempty,url"`
	FileSizeBytes *int64  `json:"fileSizeBytes" validate:"omitempty,min=0"`
	ThumbnailURL  *string `json:"thumbnailUrl" validate:"omitempty,url"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	KordaID       *string `json:"kordaId" validate:"omitempty,uuid"`
	IsFeatured    *bool   `json:"isFeatured"`
}

type updateRequest struct {
	Title         *string `json:"title" validate:"omitempty,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=5000"`
	FileURL       *string `json:"fileUrl" validate:"omitempty,url"`
	FileSizeBytes *int64  `json:"fileSizeBytes" validate:"omitempty,min=0"`
	ThumbnailURL  *string `json:"thumbnailUrl" validate:"omitempty,url"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	IsFeatured    *bool   `json:"isFeatured"`
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
	r.Patch("/:id/archive",
		mwauth.RequirePermission(coreauth.PermMediaArchive), s.Archive)
}

// validateConditional enforces the per-type field rules: copywriting needs a
// description, image and video need a file URL.
func validateConditional(mediaType models.MediaType, description, fileURL *string) (string, bool) {
	switch mediaType {
	case models.MediaTypeCopywriting:
		if description == nil || strings.TrimSpace(*description) == "" {
			return "Description is required for copywriting content", false
		}
	case models.MediaTypeImage, models.MediaTypeVideo:
		if fileURL == nil || *fileURL == "" {
			return "File URL is required for image and video content", false
		}
	}

	return "", true
}

// List returns media contents, paginated, newest first. Archived rows are
// excluded unless requested. Branch-scoped identities are forced to their
// own korda regardless of the kordaId filter.
func (s *Service) List(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)
	page, limit := handler.PageParams(c)

	q := s.deps.DB.Model(&models.MediaContent{}).
		Preload("Category").Preload("Uploader").Preload("Korda")

	if mediaType := c.Query("type"); mediaType != "" {
		q = q.Where("type = ?", strings.ToUpper(mediaType))
	}

	if categoryID := c.Query("categoryId"); categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}

	if kordaID, scoped := currentUser.ScopedKorda(); scoped {
		q = q.Where("korda_id = ?", kordaID)
	} else if kordaID := c.Query("kordaId"); kordaID != "" {
		q = q.Where("korda_id = ?", kordaID)
	}

	if featured := c.Query("isFeatured"); featured != "" {
		q = q.Where("is_featured = ?", featured == "true")
	}

	q = q.Where("is_archived = ?", c.Query("isArchived") == "true")

	if search := c.Query("search"); search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("media/list count failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list media")
	}

	var contents []models.MediaContent
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&contents).Error; err != nil {
		log.Error().Err(err).Msg("media/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list media")
	}

	return response.Paginated(c, contents, page, limit, total)
}

// Get returns one media content with category, uploader and korda.
func (s *Service) Get(c *fiber.Ctx) error {
	var content models.MediaContent
	if err := s.deps.DB.Preload("Category").Preload("Uploader").Preload("Korda").
		Where("id = ?", c.Params("id")).First(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Media content not found")
		}

		log.Error().Err(err).Msg("media/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load media")
	}

	return response.Success(c, content)
}

// Create adds a media content. Branch-scoped identities always create rows
// for their own korda; the request's kordaId is overridden.
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

	mediaType := models.MediaType(strings.ToUpper(req.Type))
	if !mediaType.Valid() {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Type must be one of IMAGE, VIDEO, COPYWRITING")
	}

	if msg, ok := validateConditional(mediaType, req.Description, req.FileURL); !ok {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, msg)
	}

	if req.CategoryID != nil {
		var category models.MediaCategory
		if err := s.deps.DB.Where("id = ?", *req.CategoryID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.Error(c, fiber.StatusBadRequest,
					response.CodeInvalidInput, "Invalid category")
			}

			log.Error().Err(err).Msg("media/create category lookup failed")

			return response.Error(c, fiber.StatusInternalServerError,
				response.CodeDatabaseError, "Failed to create media")
		}
	}

	kordaID := req.KordaID
	if own, scoped := currentUser.ScopedKorda(); scoped {
		kordaID = &own
	}

	content := models.MediaContent{
		Title:         req.Title,
		Description:   req.Description,
		Type:          mediaType,
		FileURL:       req.FileURL,
		FileSizeBytes: req.FileSizeBytes,
		ThumbnailURL:  req.ThumbnailURL,
		CategoryID:    req.CategoryID,
		UploadedBy:    currentUser.ID,
		KordaID:       kordaID,
	}

	if req.IsFeatured != nil {
		content.IsFeatured = *req.IsFeatured
	}

	if err := s.deps.DB.Create(&content).Error; err != nil {
		log.Error().Err(err).Msg("media/create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create media")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreateMedia,
		EntityTable: models.MediaContent{}.TableName(),
		EntityID:    &content.ID,
		NewState:    content,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, content)
}

// load fetches the row and evaluates the branch scoping predicate. The row
// must be loaded before any write so a scoped denial leaves it untouched.
func (s *Service) load(c *fiber.Ctx, currentUser *coreauth.AuthUser) (*models.MediaContent, error) {
	var content models.MediaContent
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Media content not found")
		}

		log.Error().Err(err).Msg("media lookup failed")

		return nil, response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load media")
	}

	if own, scoped := currentUser.ScopedKorda(); scoped {
		if content.KordaID == nil || *content.KordaID != own {
			return nil, response.Error(c, fiber.StatusForbidden,
				response.CodeForbidden, "You can only manage content of your own korda")
		}
	}

	return &content, nil
}

// Update applies a partial update to a media content. The type and uploader
// are immutable.
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

	content, err := s.load(c, currentUser)
	if content == nil {
		return err
	}

	previous := *content

	if req.Title != nil {
		content.Title = *req.Title
	}

	if req.Description != nil {
		content.Description = req.Description
	}

	if req.FileURL != nil {
		content.FileURL = req.FileURL
	}

	if req.FileSizeBytes != nil {
		content.FileSizeBytes = req.FileSizeBytes
	}

	if req.ThumbnailURL != nil {
		content.ThumbnailURL = req.ThumbnailURL
	}

	if req.CategoryID != nil {
		content.CategoryID = req.CategoryID
	}

	if req.IsFeatured != nil {
		content.IsFeatured = *req.IsFeatured
	}

	if msg, ok := validateConditional(content.Type, content.Description, content.FileURL); !ok {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, msg)
	}

	if err := s.deps.DB.Save(content).Error; err != nil {
		log.Error().Err(err).Msg("media/update save failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to update media")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditUpdateMedia,
		EntityTable:   models.MediaContent{}.TableName(),
		EntityID:      &content.ID,
		PreviousState: previous,
		NewState:      *content,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, content)
}

// Delete soft deletes a media content.
func (s *Service) Delete(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	content, err := s.load(c, currentUser)
	if content == nil {
		return err
	}

	if err := s.deps.DB.Delete(content).Error; err != nil {
		log.Error().Err(err).Msg("media/delete failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to delete media")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditDeleteMedia,
		EntityTable:   models.MediaContent{}.TableName(),
		EntityID:      &content.ID,
		PreviousState: *content,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, fiber.Map{"deleted": true})
}

// Archive toggles the archive flag of a media content.
func (s *Service) Archive(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(struct {
		IsArchived *bool `json:"isArchived" validate:"required"`
	})
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	content, err := s.load(c, currentUser)
	if content == nil {
		return err
	}

	previous := *content

	content.IsArchived = *req.IsArchived
	if content.IsArchived {
		now := time.Now()
		content.ArchivedAt = &now
	} else {
		content.ArchivedAt = nil
	}

	updates := map[string]interface{}{
		"is_archived": content.IsArchived,
		"archived_at": content.ArchivedAt,
	}
	if err := s.deps.DB.Model(content).Updates(updates).Error; err != nil {
		log.Error().Err(err).Msg("media/archive update failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to archive media")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:        &currentUser.ID,
		Action:        models.AuditArchiveMedia,
		EntityTable:   models.MediaContent{}.TableName(),
		EntityID:      &content.ID,
		PreviousState: previous,
		NewState:      *content,
		IPAddress:     ip,
		UserAgent:     userAgent,
	})

	return response.Success(c, content)
}
