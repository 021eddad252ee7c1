// Package auth provides the authentication endpoints: login, register,
// profile, password change and impersonation.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	// Path is the base path for the authentication endpoints.
	Path = "/auth"
)

// Service provides the authentication endpoints.
type Service struct {
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName string  `json:"fullName" validate:"required,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,min=10,max=15"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	RoleID   string  `json:"roleId" validate:"required,uuid"`
	KordaID  *string `json:"kordaId" validate:"omitempty,uuid"`
	IsActive *bool   `json:"isActive"`
}

type impersonateRequest struct {
	TargetUserID string  `json:"targetUserId" validate:"required,uuid"`
	Reason       *string `json:"reason" validate:"omitempty,max=500"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// Init registers routes.
func (s *Service) Init(api fiber.Router, deps *handler.Deps) {
	if api == nil || deps == nil || deps.DB == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.deps = deps
	s.validator = validator.New()

	api.Post(Path+"/login",
		rateLimit(deps.Cfg.Auth.LoginRateLimit),
		s.Login,
	)
	api.Post(Path+"/register",
		rateLimit(deps.Cfg.Auth.RegisterRateLimit),
		deps.Authn,
		mwauth.RequirePermission(coreauth.PermUsersCreate),
		s.Register,
	)
	api.Get(Path+"/me",
		deps.Authn,
		s.Me,
	)
	api.Post(Path+"/impersonate",
		deps.Authn,
		mwauth.RequirePermission(coreauth.PermUsersImpersonate),
		s.Impersonate,
	)
	api.Post(Path+"/change-password",
		deps.Authn,
		s.ChangePassword,
	)
}

// rateLimit caps attempts per source IP per minute. The cap is independent
// of the authentication state machine.
func rateLimit(maxPerMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        maxPerMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests,
				response.CodeRateLimitExceeded,
				"Too many attempts. Try again in a minute.")
		},
	})
}

// Login authenticates by email and password and returns a session token.
// Unknown email, wrong password and missing credential all produce the same
// 401 body so accounts can not be enumerated.
func (s *Service) Login(c *fiber.Ctx) error {
	req := new(loginRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	user, err := s.deps.Auth.Authenticate(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, coreauth.ErrUserNotFound),
			errors.Is(err, coreauth.ErrInvalidPassword),
			errors.Is(err, coreauth.ErrNoPasswordSet):
			return response.Error(c, fiber.StatusUnauthorized,
				response.CodeUnauthorized, "Invalid email or password")
		case errors.Is(err, coreauth.ErrUserAccountDisabled):
			return response.Error(c, fiber.StatusForbidden,
				response.CodeForbidden, "Account is inactive. Contact an admin.")
		default:
			log.Error().Err(err).Msg("auth/login failed")

			return response.Error(c, fiber.StatusInternalServerError,
				response.CodeInternalError, "Login failed")
		}
	}

	token, err := s.deps.Tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Msg("auth/login token issue failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeInternalError, "Login failed")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &user.ID,
		Action:      models.AuditUserLogin,
		EntityTable: models.User{}.TableName(),
		EntityID:    &user.ID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Register creates a new user account. Requires users:create.
func (s *Service) Register(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(registerRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Soft-deleted rows still hold the unique index, so the existence check
	// is unscoped.
	var count int64
	if err := s.deps.DB.Unscoped().Model(&models.User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		log.Error().Err(err).Msg("auth/register existence check failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to register user")
	}

	if count > 0 {
		return response.Error(c, fiber.StatusConflict,
			response.CodeAlreadyExists, "Email is already registered")
	}

	var role models.Role
	if err := s.deps.DB.Where("id = ?", req.RoleID).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusBadRequest,
				response.CodeInvalidInput, "Invalid role")
		}

		log.Error().Err(err).Msg("auth/register role lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to register user")
	}

	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		hashed := models.HashPassword(*req.Password)
		passwordHash = &hashed
	}

	var phone *string
	if req.Phone != nil {
		normalized := models.NormalizePhone(*req.Phone)
		phone = &normalized
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user := models.User{
		Email:        email,
		FullName:     req.FullName,
		Phone:        phone,
		PasswordHash: passwordHash,
		RoleID:       req.RoleID,
		KordaID:      req.KordaID,
		IsActive:     isActive,
	}

	if err := s.deps.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Error(c, fiber.StatusConflict,
				response.CodeAlreadyExists, "Email is already registered")
		}

		log.Error().Err(err).Msg("auth/register create failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeDatabaseError, "Failed to register user")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditCreateUser,
		EntityTable: models.User{}.TableName(),
		EntityID:    &user.ID,
		NewState:    user,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return response.Success(c, user)
}

// Me returns the current user's profile, role, korda and permission names.
func (s *Service) Me(c *fiber.Ctx) error {
	currentUser, ok := mwauth.CurrentUser(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized,
			response.CodeUnauthorized, "Unauthorized")
	}

	var user models.User
	if err := s.deps.DB.Preload("Role").Preload("Korda").
		Where("id = ?", currentUser.ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("auth/me lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeInternalError, "Failed to load profile")
	}

	return response.Success(c, fiber.Map{
		"id":          user.ID,
		"email":       user.Email,
		"fullName":    user.FullName,
		"phone":       user.Phone,
		"role":        user.Role,
		"korda":       user.Korda,
		"permissions": currentUser.Permissions.Names(),
	})
}

// Impersonate issues a session token whose subject is the target user.
// Requires users:impersonate; both parties are always written to the audit
// trail.
func (s *Service) Impersonate(c *fiber.Ctx) error {
	currentUser, _ := mwauth.CurrentUser(c)

	req := new(impersonateRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	var target models.User
	if err := s.deps.DB.Preload("Role").Preload("Korda").
		Where("id = ?", req.TargetUserID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, fiber.StatusNotFound,
				response.CodeNotFound, "User not found")
		}

		log.Error().Err(err).Msg("auth/impersonate lookup failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeInternalError, "Impersonation failed")
	}

	token, err := s.deps.Tokens.Issue(&target)
	if err != nil {
		log.Error().Err(err).Msg("auth/impersonate token issue failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeInternalError, "Impersonation failed")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditUserImpersonate,
		EntityTable: models.User{}.TableName(),
		EntityID:    &target.ID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Metadata: fiber.Map{
			"impersonatorId":    currentUser.ID,
			"impersonatorEmail": currentUser.Email,
			"targetUserId":      target.ID,
			"targetUserEmail":   target.Email,
			"reason":            req.Reason,
		},
	})

	return response.Success(c, fiber.Map{
		"token":         token,
		"impersonating": target,
		"warning":       "You are now impersonating this user. All actions will be logged.",
	})
}

// ChangePassword changes the current user's password.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	currentUser, ok := mwauth.CurrentUser(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized,
			response.CodeUnauthorized, "Unauthorized")
	}

	req := new(changePasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return response.Error(c, fiber.StatusBadRequest,
			response.CodeInvalidInput, "Malformed request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return response.Error(c, fiber.StatusUnprocessableEntity,
			response.CodeValidationError, "Validation failed", handler.ValidationDetails(err))
	}

	if err := s.deps.Auth.ChangePassword(currentUser.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, coreauth.ErrInvalidOldPassword) {
			return response.Error(c, fiber.StatusBadRequest,
				response.CodeInvalidInput, "Current password is incorrect")
		}

		log.Error().Err(err).Msg("auth/change-password failed")

		return response.Error(c, fiber.StatusInternalServerError,
			response.CodeInternalError, "Failed to change password")
	}

	ip, userAgent := handler.ClientInfo(c)
	s.deps.Audit.Record(audit.Entry{
		UserID:      &currentUser.ID,
		Action:      models.AuditUpdateUser,
		EntityTable: models.User{}.TableName(),
		EntityID:    &currentUser.ID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Metadata:    fiber.Map{"field": "password"},
	})

	return response.Success(c, fiber.Map{"changed": true})
}
