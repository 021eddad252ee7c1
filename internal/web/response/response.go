// Package response implements the JSON envelope every endpoint produces.
// Every outcome is either {success:true,data,meta?} or
// {success:false,error:{code,message,details?}} with a fixed vocabulary of
// machine-readable codes.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Machine-readable error codes of the failure envelope.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
)

// Meta carries pagination information on list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ErrorBody is the error payload of a failure envelope.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success sends a success envelope with the given data.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// Paginated sends a success envelope with pagination meta.
func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"meta": Meta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Error sends a failure envelope with the given HTTP status and error code.
func Error(c *fiber.Ctx, status int, code, message string, details ...interface{}) error {
	body := ErrorBody{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 && details[0] != nil {
		body.Details = details[0]
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   body,
	})
}
