package role

import (
	"bytes"
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

	"github.com/nasuha-connect/nasuha-connect/internal/audit"
	coreauth "github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/config"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler"
	mwauth "github.com/nasuha-connect/nasuha-connect/internal/web/middleware/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	token  string
	perms  map[string]models.Permission
	tokens *coreauth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Korda{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
		&models.AuditLog{},
	)
	require.NoError(t, err, "failed to migrate test database")

	cfg := &config.Config{
		Auth: config.Auth{JWTSecret: testSecret, TokenExpiry: time.Hour},
	}

	authService := coreauth.NewService(db)
	tokens := coreauth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	deps := &handler.Deps{
		Cfg:    cfg,
		DB:     db,
		Auth:   authService,
		Tokens: tokens,
		Audit:  audit.NewRecorder(db),
		Authn:  mwauth.New(authService, tokens),
	}

	app := fiber.New()

	var s Service
	s.Init(app.Group("/api"), deps)

	// admin holding the role management permissions; the media ones only
	// exist as assignment material
	perms := make(map[string]models.Permission)

	for _, name := range []string{
		coreauth.PermRolesRead, coreauth.PermRolesCreate,
		coreauth.PermRolesUpdate, coreauth.PermRolesDelete,
		coreauth.PermMediaRead, coreauth.PermMediaCreate,
	} {
		perm := models.Permission{Name: name, DisplayName: name, Module: "test"}
		require.NoError(t, db.Create(&perm).Error)
		perms[name] = perm
	}

	granted := []models.Permission{
		perms[coreauth.PermRolesRead], perms[coreauth.PermRolesCreate],
		perms[coreauth.PermRolesUpdate], perms[coreauth.PermRolesDelete],
	}

	role := models.Role{Name: "role-manager", DisplayName: "Role Manager", Permissions: granted}
	require.NoError(t, db.Create(&role).Error)

	user := models.User{Email: "admin@example.com", FullName: "Admin", RoleID: role.ID, IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	token, err := tokens.Issue(&user)
	require.NoError(t, err)

	return &testEnv{app: app, db: db, token: token, perms: perms, tokens: tokens}
}

func performJSON(t *testing.T, app *fiber.App, method, target, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err, "app.Test failed")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(raw, &out))

	return resp, out
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()

	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)

	code, _ := e["code"].(string)

	return code
}

func TestCreate_WithPermissions(t *testing.T) {
	env := newTestEnv(t)

	resp, body := performJSON(t, env.app, http.MethodPost, "/api/roles", env.token,
		fiber.Map{
			"name":        "content_editor",
			"displayName": "Content Editor",
			"permissionIds": []string{
				env.perms[coreauth.PermMediaRead].ID,
				env.perms[coreauth.PermMediaCreate].ID,
			},
		})

	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "content_editor", data["name"])

	rolePerms := data["permissions"].([]interface{})
	assert.Len(t, rolePerms, 2)
}

func TestCreate_DuplicateName(t *testing.T) {
	env := newTestEnv(t)

	payload := fiber.Map{"name": "dup", "displayName": "Dup"}

	resp, _ := performJSON(t, env.app, http.MethodPost, "/api/roles", env.token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := performJSON(t, env.app, http.MethodPost, "/api/roles", env.token, payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.CodeAlreadyExists, errorCode(t, body))
}

func TestCreate_UnknownPermission(t *testing.T) {
	env := newTestEnv(t)

	resp, body := performJSON(t, env.app, http.MethodPost, "/api/roles", env.token,
		fiber.Map{
			"name":          "broken",
			"displayName":   "Broken",
			"permissionIds": []string{"11111111-2222-4333-8444-555555555555"},
		})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, response.CodeInvalidInput, errorCode(t, body))
}

func TestSystemRole_Immutable(t *testing.T) {
	env := newTestEnv(t)

	system := models.Role{Name: "super_admin", DisplayName: "Super Admin", IsSystem: true}
	require.NoError(t, env.db.Create(&system).Error)

	resp, body := performJSON(t, env.app, http.MethodPut, "/api/roles/"+system.ID, env.token,
		fiber.Map{"displayName": "Renamed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.CodeForbidden, errorCode(t, body))

	resp, body = performJSON(t, env.app, http.MethodDelete, "/api/roles/"+system.ID, env.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.CodeForbidden, errorCode(t, body))

	var reloaded models.Role
	require.NoError(t, env.db.First(&reloaded, "id = ?", system.ID).Error)
	assert.Equal(t, "Super Admin", reloaded.DisplayName)
}

func TestSystemRole_PermissionAssignmentAllowed(t *testing.T) {
	env := newTestEnv(t)

	system := models.Role{Name: "super_admin", DisplayName: "Super Admin", IsSystem: true}
	require.NoError(t, env.db.Create(&system).Error)

	resp, body := performJSON(t, env.app, http.MethodPut,
		"/api/roles/"+system.ID+"/permissions", env.token,
		fiber.Map{"permissionIds": []string{env.perms[coreauth.PermMediaRead].ID}})

	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)

	var reloaded models.Role
	require.NoError(t, env.db.Preload("Permissions").First(&reloaded, "id = ?", system.ID).Error)
	require.Len(t, reloaded.Permissions, 1)
	assert.Equal(t, coreauth.PermMediaRead, reloaded.Permissions[0].Name)
}

func TestAssignPermissions_ReplacesSet(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{
		Name:        "editors",
		DisplayName: "Editors",
		Permissions: []models.Permission{env.perms[coreauth.PermMediaRead]},
	}
	require.NoError(t, env.db.Create(&role).Error)

	resp, body := performJSON(t, env.app, http.MethodPut,
		"/api/roles/"+role.ID+"/permissions", env.token,
		fiber.Map{"permissionIds": []string{env.perms[coreauth.PermMediaCreate].ID}})

	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)

	var reloaded models.Role
	require.NoError(t, env.db.Preload("Permissions").First(&reloaded, "id = ?", role.ID).Error)
	require.Len(t, reloaded.Permissions, 1, "assignment replaces, not appends")
	assert.Equal(t, coreauth.PermMediaCreate, reloaded.Permissions[0].Name)
}

func TestDelete_BlockedWhileAssigned(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "assigned", DisplayName: "Assigned"}
	require.NoError(t, env.db.Create(&role).Error)

	user := models.User{Email: "member@example.com", FullName: "Member", RoleID: role.ID}
	require.NoError(t, env.db.Create(&user).Error)

	resp, body := performJSON(t, env.app, http.MethodDelete, "/api/roles/"+role.ID, env.token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.CodeAlreadyExists, errorCode(t, body))

	require.NoError(t, env.db.Delete(&user).Error)

	resp, _ = performJSON(t, env.app, http.MethodDelete, "/api/roles/"+role.ID, env.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDelete_AssignmentCheckIgnoresDeletedUsers(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "orphaned", DisplayName: "Orphaned"}
	require.NoError(t, env.db.Create(&role).Error)

	user := models.User{Email: "gone@example.com", FullName: "Gone", RoleID: role.ID}
	require.NoError(t, env.db.Create(&user).Error)
	require.NoError(t, env.db.Delete(&user).Error)

	resp, _ := performJSON(t, env.app, http.MethodDelete, "/api/roles/"+role.ID, env.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode,
		"soft-deleted assignments must not block role deletion")
}
