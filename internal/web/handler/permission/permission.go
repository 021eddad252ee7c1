// Package permission provides the permission catalog endpoints.
package permission

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
	// Path is the base path for the permission endpoints.
	Path = "/permissions"
)

// nameFormat is the module:action shape every permission name must have.
var nameFormat = regexp.MustCompile(`^[a-z][a-z_]*:[a-z][a-z_]*$`)

// Service provides the permission catalog endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type createRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	DisplayName string `json:"displayName" validate:"required,max=255"`
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
	r.Post(handler.RootPath,
		mwauth.RequirePermission(coreauth.PermRolesCreate), s.Create)
}

// List returns the permission catalog grouped by module.
func (s *Service) List(c *fiber.Ctx) error {
	var perms []models.Permission
	if err := s.deps.DB.Order("module ASC, name ASC").Find(&perms).Error; err != nil {
		log.Error().Err(err).Msg("permission/list query failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to list permissions")
	}

	grouped := make(map[string][]models.Permission)
	for _, p := range perms {
		grouped[p.Module] = append(grouped[p.Module], p)
	}

	return response.Success(c, grouped)
}

// Create adds a permission to the catalog. The name must have the
// module:action shape; the module segment is derived from it.
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

	if !nameFormat.MatchString(req.Name) {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Permission name must look like module:action")
	}

	module, _, _ := strings.Cut(req.Name, ":")

	perm := models.Permission{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Module:      module,
	}

	if err := s.deps.DB.Create(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Permission already exists")
		}

		log.Error().Err(err).Msg("permission/create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to create permission")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreatePermission,
		EntityTable: models.Permission{}.TableName(),
		EntityID:    &perm.ID,
		NewState:    perm,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, perm)
}
