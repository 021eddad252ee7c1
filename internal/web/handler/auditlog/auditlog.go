// Package auditlog provides read-only access to the audit trail.
package auditlog

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	coreauth "github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler"
	mwauth "github.com/nasuha-connect/nasuha-connect/internal/web/middleware/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const (
	// Path is the base path for the audit log endpoints.
	Path = "/audit-logs"
)

// Service provides the audit trail endpoints. The trail is append-only;
// there are no mutating routes here.
type Service struct {
	deps *handler.Deps
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(api fiber.Router, deps *handler.Deps) {
	if api == nil || deps == nil || deps.DB == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.deps = deps

	r := api.Group(Path, deps.Authn)

	r.Get(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermAuditRead), s.List)
	r.Get("/:id",
		mwauth.RequirePermission(coreauth.PermAuditRead), s.Get)
}

// List returns audit entries, newest first, optionally filtered by action,
// entity table and acting user.
func (s *Service) List(c *fiber.Ctx) error {
	page, limit := handler.PageParams(c)

	q := s.deps.DB.Model(&models.AuditLog{})

	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}

	if table := c.Query("entityTable"); table != "" {
		q = q.Where("entity_table = ?", table)
	}

	if userID := c.Query("userId"); userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("auditlog/list count failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list audit logs")
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&logs).Error; err != nil {
		log.Error().Err(err).Msg("auditlog/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list audit logs")
	}

	return response.Paginated(c, logs, page, limit, total)
}

// Get returns one audit entry by ID.
func (s *Service) Get(c *fiber.Ctx) error {
	var entry models.AuditLog
	if err := s.deps.DB.Where("id = ?", c.Params("id")).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "Audit entry not found")
		}

		log.Error().Err(err).Msg("auditlog/get query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to load audit entry")
	}

	return response.Success(c, entry)
}
