package category

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

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Flyer Ramadhan", "flyer-ramadhan"},
		{"  Spaces  Around  ", "spaces-around"},
		{"Already-Slugged", "already-slugged"},
		{"Symbols!@#Between$Words", "symbols-between-words"},
		{"UPPER", "upper"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.input), "input %q", tt.input)
	}
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, string) {
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
		&models.MediaCategory{},
		&models.MediaContent{},
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

	// editor with full media permissions
	perms := make([]models.Permission, 0, 4)
	for _, name := range []string{
		coreauth.PermMediaRead, coreauth.PermMediaCreate,
		coreauth.PermMediaUpdate, coreauth.PermMediaDelete,
	} {
		perm := models.Permission{Name: name, DisplayName: name, Module: "media"}
		require.NoError(t, db.Create(&perm).Error)
		perms = append(perms, perm)
	}

	role := models.Role{Name: "editor", DisplayName: "Editor", Permissions: perms}
	require.NoError(t, db.Create(&role).Error)

	user := models.User{Email: "editor@example.com", FullName: "Editor", RoleID: role.ID, IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	token, err := tokens.Issue(&user)
	require.NoError(t, err)

	return app, db, token
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

func TestCreate_DerivesSlug(t *testing.T) {
	app, _, token := newTestApp(t)

	resp, body := performJSON(t, app, http.MethodPost, "/api/categories", token,
		fiber.Map{"name": "Flyer Ramadhan"})

	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "flyer-ramadhan", data["slug"])
}

func TestCreate_SlugConflict(t *testing.T) {
	app, _, token := newTestApp(t)

	resp, _ := performJSON(t, app, http.MethodPost, "/api/categories", token,
		fiber.Map{"name": "Flyer Ramadhan"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// different display name, same derived slug
	resp, body := performJSON(t, app, http.MethodPost, "/api/categories", token,
		fiber.Map{"name": "flyer ramadhan!"})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.CodeAlreadyExists, errorCode(t, body))
}

func TestUpdate_SlugIsImmutable(t *testing.T) {
	app, db, token := newTestApp(t)

	resp, body := performJSON(t, app, http.MethodPost, "/api/categories", token,
		fiber.Map{"name": "Original"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	id := body["data"].(map[string]interface{})["id"].(string)

	resp, _ = performJSON(t, app, http.MethodPut, "/api/categories/"+id, token,
		fiber.Map{"name": "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var category models.MediaCategory
	require.NoError(t, db.First(&category, "id = ?", id).Error)
	assert.Equal(t, "Renamed", category.Name)
	assert.Equal(t, "original", category.Slug)
}

func TestDelete_BlockedWhileInUse(t *testing.T) {
	app, db, token := newTestApp(t)

	resp, body := performJSON(t, app, http.MethodPost, "/api/categories", token,
		fiber.Map{"name": "Busy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	id := body["data"].(map[string]interface{})["id"].(string)

	var user models.User
	require.NoError(t, db.First(&user).Error)

	fileURL := "https://cdn.example.com/x.png"
	content := models.MediaContent{
		Title:      "Uses category",
		Type:       models.MediaTypeImage,
		FileURL:    &fileURL,
		CategoryID: &id,
		UploadedBy: user.ID,
	}
	require.NoError(t, db.Create(&content).Error)

	resp, respBody := performJSON(t, app, http.MethodDelete, "/api/categories/"+id, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.CodeAlreadyExists, errorCode(t, respBody))

	// removing the content frees the category
	require.NoError(t, db.Delete(&content).Error)

	resp, _ = performJSON(t, app, http.MethodDelete, "/api/categories/"+id, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGet_NotFound(t *testing.T) {
	app, _, token := newTestApp(t)

	resp, body := performJSON(t, app, http.MethodGet,
		"/api/categories/11111111-2222-4333-8444-555555555555", token, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, response.CodeNotFound, errorCode(t, body))
}
