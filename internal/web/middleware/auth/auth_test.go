package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	coreauth "github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.Korda{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func seedIdentity(t *testing.T, db *gorm.DB, active bool, permNames ...string) *models.User {
	t.Helper()

	perms := make([]models.Permission, 0, len(permNames))
	for _, name := range permNames {
		perm := models.Permission{Name: name, DisplayName: name, Module: "test"}
		require.NoError(t, db.Where(models.Permission{Name: name}).FirstOrCreate(&perm).Error)
		perms = append(perms, perm)
	}

	role := models.Role{Name: "test-role", DisplayName: "Test Role", Permissions: perms}
	require.NoError(t, db.Create(&role).Error)

	user := models.User{
		Email:    "alice@example.com",
		FullName: "Alice",
		RoleID:   role.ID,
		IsActive: active,
	}
	require.NoError(t, db.Create(&user).Error)

	return &user
}

// newProtectedApp builds an app with one route behind the authentication
// middleware and an optional permission gate.
func newProtectedApp(db *gorm.DB, gates ...fiber.Handler) (*fiber.App, *coreauth.Tokens) {
	service := coreauth.NewService(db)
	tokens := coreauth.NewTokens(testSecret, time.Hour)

	handlers := append([]fiber.Handler{New(service, tokens)}, gates...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		user, _ := CurrentUser(c)
		return response.Success(c, fiber.Map{"id": user.ID})
	})

	app := fiber.New()
	app.Get("/protected", handlers...)

	return app, tokens
}

func perform(t *testing.T, app *fiber.App, authorization string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err, "app.Test failed")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))

	return resp, body
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()

	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)

	code, _ := e["code"].(string)

	return code
}

func TestAuthn_MissingToken(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newProtectedApp(db)

	resp, body := perform(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeUnauthorized, errorCode(t, body))

	// a non-bearer scheme is treated as missing
	resp, body = perform(t, app, "Basic abc123")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeUnauthorized, errorCode(t, body))
}

func TestAuthn_InvalidToken(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newProtectedApp(db)

	resp, body := perform(t, app, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeInvalidToken, errorCode(t, body))
}

func TestAuthn_ExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true)

	app, _ := newProtectedApp(db)

	expired := coreauth.NewTokens(testSecret, -time.Minute)
	raw, err := expired.Issue(user)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeTokenExpired, errorCode(t, body))
}

func TestAuthn_UnknownIdentity(t *testing.T) {
	db := setupTestDB(t)
	app, tokens := newProtectedApp(db)

	ghost := &models.User{ID: "no-such-user", Email: "ghost@example.com", RoleID: "r"}
	raw, err := tokens.Issue(ghost)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeUnauthorized, errorCode(t, body))
}

func TestAuthn_DeletedIdentity(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true)

	app, tokens := newProtectedApp(db)

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	require.NoError(t, db.Delete(user).Error)

	// a still-valid token no longer passes once the identity is gone
	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeUnauthorized, errorCode(t, body))
}

func TestAuthn_InactiveIdentity(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, false)

	app, tokens := newProtectedApp(db)

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.CodeForbidden, errorCode(t, body))
}

func TestAuthn_Success(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true, coreauth.PermMediaRead)

	app, tokens := newProtectedApp(db)

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, user.ID, data["id"])
}

func TestRequirePermission(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true, coreauth.PermMediaRead)

	app, tokens := newProtectedApp(db,
		RequirePermission(coreauth.PermMediaRead, coreauth.PermMediaCreate))

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.CodeForbidden, errorCode(t, body))

	// the denial names what was missing
	e := body["error"].(map[string]interface{})
	assert.Contains(t, e["message"], coreauth.PermMediaCreate)
}

func TestRequirePermission_AllHeld(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true, coreauth.PermMediaRead, coreauth.PermMediaCreate)

	app, tokens := newProtectedApp(db,
		RequirePermission(coreauth.PermMediaRead, coreauth.PermMediaCreate))

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, _ := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAnyPermission(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true, coreauth.PermMediaRead)

	app, tokens := newProtectedApp(db,
		RequireAnyPermission(coreauth.PermMediaCreate, coreauth.PermMediaRead))

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, _ := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAnyPermission_NoneHeld(t *testing.T) {
	db := setupTestDB(t)
	user := seedIdentity(t, db, true)

	app, tokens := newProtectedApp(db,
		RequireAnyPermission(coreauth.PermMediaCreate, coreauth.PermMediaDelete))

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	resp, body := perform(t, app, "Bearer "+raw)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.CodeForbidden, errorCode(t, body))
}

func TestGate_WithoutAuthnFailsSafe(t *testing.T) {
	app := fiber.New()
	app.Get("/misordered",
		RequirePermission(coreauth.PermMediaRead),
		func(c *fiber.Ctx) error { return response.Success(c, nil) })

	req := httptest.NewRequest(http.MethodGet, "/misordered", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
