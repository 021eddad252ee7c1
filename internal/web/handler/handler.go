// Package handler provides shared plumbing for the JSON API handlers.
package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/audit"
	"github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/config"
)

const (
	// RootPath is the root path of the route group.
	RootPath = "/"

	// DefaultPageSize for pagination.
	DefaultPageSize = 20

	// MaxPageSize bounds the pagination limit parameter.
	MaxPageSize = 100

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)

// Deps bundles the collaborators every handler needs. The pool handle and
// services are constructed once at startup and passed by reference; no
// handler builds its own.
type Deps struct {
	Cfg    *config.Config
	DB     *gorm.DB
	Auth   *auth.Service
	Tokens *auth.Tokens
	Audit  *audit.Recorder

	// Authn is the request authentication middleware, applied per route so
	// public endpoints (login, health) stay reachable.
	Authn fiber.Handler
}

// ClientInfo extracts the request IP and user agent for audit entries.
func ClientInfo(c *fiber.Ctx) (ip, userAgent *string) {
	if v := c.IP(); v != "" {
		ip = &v
	}

	if v := c.Get(fiber.HeaderUserAgent); v != "" {
		userAgent = &v
	}

	return ip, userAgent
}

// PageParams reads and clamps the page/limit query parameters.
func PageParams(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	limit = c.QueryInt("limit", DefaultPageSize)
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	return page, limit
}

// ValidationDetails converts validator errors into field-level detail for
// the 422 envelope.
func ValidationDetails(err error) map[string]string {
	details := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return details
	}

	for _, fe := range verrs {
		details[fe.Field()] = "failed on rule: " + fe.Tag()
	}

	return details
}
