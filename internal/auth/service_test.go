package auth

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
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

// seedIdentity creates a role with the given permissions and a user holding it.
func seedIdentity(t *testing.T, db *gorm.DB, email string, active bool, permNames ...string) *models.User {
	t.Helper()

	perms := make([]models.Permission, 0, len(permNames))

	for _, name := range permNames {
		perm := models.Permission{Name: name, DisplayName: name, Module: "test"}
		require.NoError(t, db.Where(models.Permission{Name: name}).FirstOrCreate(&perm).Error)
		perms = append(perms, perm)
	}

	role := models.Role{
		Name:        "role-" + email,
		DisplayName: "Role for " + email,
		Permissions: perms,
	}
	require.NoError(t, db.Create(&role).Error)

	hash := models.HashPassword("correct-horse")
	user := models.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: &hash,
		RoleID:       role.ID,
		IsActive:     active,
	}
	require.NoError(t, db.Create(&user).Error)

	return &user
}

func TestResolve(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := seedIdentity(t, db, "alice@example.com", true,
		PermMediaRead, PermMediaCreate)

	resolved, err := svc.Resolve(user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, user.Email, resolved.Email)
	assert.Equal(t, user.RoleID, resolved.RoleID)
	assert.True(t, resolved.IsActive)
	assert.Equal(t, []string{PermMediaCreate, PermMediaRead}, resolved.Permissions.Names())
}

func TestResolve_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := seedIdentity(t, db, "alice@example.com", true, PermMediaRead)

	first, err := svc.Resolve(user.ID)
	require.NoError(t, err)

	second, err := svc.Resolve(user.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_UnknownAndDeleted(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, err := svc.Resolve("does-not-exist")
	assert.ErrorIs(t, err, ErrUserNotFound)

	user := seedIdentity(t, db, "gone@example.com", true, PermMediaRead)
	require.NoError(t, db.Delete(user).Error)

	_, err = svc.Resolve(user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound, "soft-deleted identity must resolve like a missing one")
}

func TestResolve_InactiveCarriesFlag(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := seedIdentity(t, db, "idle@example.com", false, PermMediaRead)

	resolved, err := svc.Resolve(user.ID)
	require.NoError(t, err)
	assert.False(t, resolved.IsActive)
}

func TestPermissionSet_Predicates(t *testing.T) {
	set := NewPermissionSet([]string{PermMediaRead, PermMediaCreate})

	assert.True(t, set.Has(PermMediaRead))
	assert.False(t, set.Has(PermMediaDelete))

	assert.True(t, set.HasAll([]string{PermMediaRead, PermMediaCreate}))
	assert.False(t, set.HasAll([]string{PermMediaRead, PermMediaDelete}))
	assert.True(t, set.HasAll(nil), "empty requirement is a subset of anything")

	assert.True(t, set.HasAny([]string{PermMediaDelete, PermMediaRead}))
	assert.False(t, set.HasAny([]string{PermMediaDelete, PermMediaArchive}))
	assert.False(t, set.HasAny(nil))

	empty := NewPermissionSet(nil)
	assert.False(t, empty.Has(PermMediaRead))
	assert.True(t, empty.HasAll(nil))
	assert.False(t, empty.HasAny([]string{PermMediaRead}))
}

func TestHasPermission(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := seedIdentity(t, db, "alice@example.com", true, PermMediaRead)

	ok, err := svc.HasPermission(user.ID, PermMediaRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(user.ID, PermMediaDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedIdentity(t, db, "alice@example.com", true, PermMediaRead)

	got, err := svc.Authenticate("alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	// email match is case-insensitive
	got, err = svc.Authenticate("ALICE@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = svc.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Authenticate("nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticate_DisabledAndNoPassword(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedIdentity(t, db, "idle@example.com", false, PermMediaRead)

	_, err := svc.Authenticate("idle@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrUserAccountDisabled)

	nopw := seedIdentity(t, db, "sso@example.com", true, PermMediaRead)
	require.NoError(t, db.Model(nopw).Update("password_hash", nil).Error)

	_, err = svc.Authenticate("sso@example.com", "anything")
	assert.ErrorIs(t, err, ErrNoPasswordSet)
}

func TestChangePassword(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := seedIdentity(t, db, "alice@example.com", true, PermMediaRead)

	err := svc.ChangePassword(user.ID, "wrong", "new-password")
	assert.ErrorIs(t, err, ErrInvalidOldPassword)

	_, err = svc.Authenticate("alice@example.com", "correct-horse")
	require.NoError(t, err, "failed change must leave the old password valid")

	require.NoError(t, svc.ChangePassword(user.ID, "correct-horse", "new-password"))

	_, err = svc.Authenticate("alice@example.com", "new-password")
	assert.NoError(t, err)

	_, err = svc.Authenticate("alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestScopedKorda(t *testing.T) {
	national := &AuthUser{}
	_, scoped := national.ScopedKorda()
	assert.False(t, scoped)

	kordaID := "some-korda"
	branch := &AuthUser{KordaID: &kordaID}

	got, scoped := branch.ScopedKorda()
	assert.True(t, scoped)
	assert.Equal(t, kordaID, got)
}
