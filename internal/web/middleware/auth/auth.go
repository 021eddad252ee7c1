package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	coreauth "github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const (
	localsUser   = "authUser"
	localsClaims = "authClaims"

	bearerPrefix = "Bearer "
)

// New creates the request authentication middleware.
// It extracts the bearer token, verifies it, resolves the acting identity
// with its permission set and attaches both to the request scope.
func New(service *coreauth.Service, tokens *coreauth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			return response.Error(c, fiber.StatusUnauthorized,
				response.CodeUnauthorized, "Missing bearer token")
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			code := response.CodeInvalidToken
			if errors.Is(err, coreauth.ErrTokenExpired) {
				code = response.CodeTokenExpired
			}

			return response.Error(c, fiber.StatusUnauthorized,
				code, "Invalid or expired token")
		}

		user, err := service.Resolve(claims.Subject)
		if err != nil {
			// Deleted and unknown identities are indistinguishable from a
			// missing account on purpose.
			if errors.Is(err, coreauth.ErrUserNotFound) {
				return response.Error(c, fiber.StatusUnauthorized,
					response.CodeUnauthorized, "Unauthorized")
			}

			log.Error().Err(err).Str("user_id", claims.Subject).
				Msg("failed to resolve identity")

			return response.Error(c, fiber.StatusInternalServerError,
				response.CodeInternalError, "Internal server error")
		}

		if !user.IsActive {
			return response.Error(c, fiber.StatusForbidden,
				response.CodeForbidden, "Account is inactive")
		}

		c.Locals(localsUser, user)
		c.Locals(localsClaims, claims)

		return c.Next()
	}
}

// CurrentUser returns the authenticated identity attached to the request.
func CurrentUser(c *fiber.Ctx) (*coreauth.AuthUser, bool) {
	user, ok := c.Locals(localsUser).(*coreauth.AuthUser)
	return user, ok
}

// Claims returns the verified token claims attached to the request.
func Claims(c *fiber.Ctx) (*coreauth.Claims, bool) {
	claims, ok := c.Locals(localsClaims).(*coreauth.Claims)
	return claims, ok
}

// RequirePermission creates Fiber middleware that requires all the given permissions.
// It must run after New; without an attached identity it fails safe with 401.
func RequirePermission(permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			log.Error().Str("path", c.Path()).
				Msg("permission gate reached without authentication")

			return response.Error(c, fiber.StatusUnauthorized,
				response.CodeUnauthorized, "Unauthorized")
		}

		if !user.Permissions.HasAll(permissions) {
			log.Warn().Str("user_id", user.ID).Strs("permissions", permissions).
				Msg("user lacks required permissions")

			return response.Error(c, fiber.StatusForbidden, response.CodeForbidden,
				"Access denied. Required permission: "+strings.Join(permissions, ", "))
		}

		return c.Next()
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			log.Error().Str("path", c.Path()).
				Msg("permission gate reached without authentication")

			return response.Error(c, fiber.StatusUnauthorized,
				response.CodeUnauthorized, "Unauthorized")
		}

		if !user.Permissions.HasAny(permissions) {
			log.Warn().Str("user_id", user.ID).Strs("permissions", permissions).
				Msg("user lacks required permissions")

			return response.Error(c, fiber.StatusForbidden, response.CodeForbidden,
				"Access denied. Required one of: "+strings.Join(permissions, ", "))
		}

		return c.Next()
	}
}
