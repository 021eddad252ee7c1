package daemon

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/config"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

// System role names created by the seeder.
const (
	RoleSuperAdmin = "super_admin"
	RoleKordaAdmin = "korda_admin"
	RoleViewer     = "viewer"
)

// permissionCatalog is the baseline permission set. Additional permissions
// can be created at runtime; these are only the ones the built-in routes
// gate on.
var permissionCatalog = []models.Permission{
	{Name: auth.PermMediaRead, DisplayName: "View media", Module: "media"},
	{Name: auth.PermMediaCreate, DisplayName: "Create media", Module: "media"},
	{Name: auth.PermMediaUpdate, DisplayName: "Edit media", Module: "media"},
	{Name: auth.PermMediaDelete, DisplayName: "Delete media", Module: "media"},
	{Name: auth.PermMediaArchive, DisplayName: "Archive media", Module: "media"},

	{Name: auth.PermUsersRead, DisplayName: "View users", Module: "users"},
	{Name: auth.PermUsersCreate, DisplayName: "Create users", Module: "users"},
	{Name: auth.PermUsersUpdate, DisplayName: "Edit users", Module: "users"},
	{Name: auth.PermUsersDelete, DisplayName: "Delete users", Module: "users"},
	{Name: auth.PermUsersImpersonate, DisplayName: "Impersonate users", Module: "users"},

	{Name: auth.PermRolesRead, DisplayName: "View roles", Module: "roles"},
	{Name: auth.PermRolesCreate, DisplayName: "Create roles", Module: "roles"},
	{Name: auth.PermRolesUpdate, DisplayName: "Edit roles", Module: "roles"},
	{Name: auth.PermRolesDelete, DisplayName: "Delete roles", Module: "roles"},

	{Name: auth.PermKordasRead, DisplayName: "View kordas", Module: "kordas"},
	{Name: auth.PermKordasCreate, DisplayName: "Create kordas", Module: "kordas"},
	{Name: auth.PermKordasUpdate, DisplayName: "Edit kordas", Module: "kordas"},
	{Name: auth.PermKordasDelete, DisplayName: "Delete kordas", Module: "kordas"},

	{Name: auth.PermAuditRead, DisplayName: "View audit trail", Module: "audit"},
}

// seed creates the permission catalog, the system roles and, on an empty
// users table, a bootstrap super admin account.
func seed(cfg *config.Config, db *gorm.DB) error {
	perms, err := seedPermissions(db)
	if err != nil {
		return err
	}

	superAdmin, err := seedRoles(db, perms)
	if err != nil {
		return err
	}

	return seedAdmin(cfg, db, superAdmin)
}

func seedPermissions(db *gorm.DB) (map[string]models.Permission, error) {
	byName := make(map[string]models.Permission, len(permissionCatalog))

	for _, p := range permissionCatalog {
		perm := p
		if err := db.Where(models.Permission{Name: perm.Name}).
			FirstOrCreate(&perm).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to seed permission %s", perm.Name)
		}

		byName[perm.Name] = perm
	}

	return byName, nil
}

func seedRoles(db *gorm.DB, perms map[string]models.Permission) (*models.Role, error) {
	pick := func(names ...string) []models.Permission {
		out := make([]models.Permission, 0, len(names))
		for _, name := range names {
			if p, ok := perms[name]; ok {
				out = append(out, p)
			}
		}

		return out
	}

	all := make([]models.Permission, 0, len(perms))
	for _, p := range permissionCatalog {
		all = append(all, perms[p.Name])
	}

	roles := []struct {
		role  models.Role
		grant []models.Permission
	}{
		{
			role: models.Role{
				Name:        RoleSuperAdmin,
				DisplayName: "Super Admin",
				IsSystem:    true,
			},
			grant: all,
		},
		{
			role: models.Role{
				Name:        RoleKordaAdmin,
				DisplayName: "Korda Admin",
				IsSystem:    true,
			},
			grant: pick(
				auth.PermMediaRead, auth.PermMediaCreate, auth.PermMediaUpdate,
				auth.PermMediaDelete, auth.PermMediaArchive,
				auth.PermUsersRead, auth.PermKordasRead,
			),
		},
		{
			role: models.Role{
				Name:        RoleViewer,
				DisplayName: "Viewer",
				IsSystem:    true,
			},
			grant: pick(auth.PermMediaRead, auth.PermKordasRead),
		},
	}

	var superAdmin *models.Role

	for i := range roles {
		role := roles[i].role
		if err := db.Where(models.Role{Name: role.Name}).
			FirstOrCreate(&role).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to seed role %s", role.Name)
		}

		// Grants are only seeded on first creation; later changes belong to
		// the admins, not the seeder.
		var granted int64
		if err := db.Model(&models.RolePermission{}).
			Where("role_id = ?", role.ID).Count(&granted).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to inspect role %s", role.Name)
		}

		if granted == 0 && len(roles[i].grant) > 0 {
			if err := db.Model(&role).
				Association("Permissions").Append(roles[i].grant); err != nil {
				return nil, errors.Wrapf(err, "failed to grant permissions to %s", role.Name)
			}
		}

		if role.Name == RoleSuperAdmin {
			r := role
			superAdmin = &r
		}
	}

	return superAdmin, nil
}

func seedAdmin(cfg *config.Config, db *gorm.DB, superAdmin *models.Role) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to count users")
	}

	if count > 0 {
		return nil
	}

	hash := models.HashPassword("changeme")
	admin := models.User{
		Email:        "admin@" + cfg.Webserver.Domain,
		FullName:     "Administrator",
		PasswordHash: &hash,
		RoleID:       superAdmin.ID,
		IsActive:     true,
	}

	if err := db.Create(&admin).Error; err != nil {
		return errors.Wrap(err, "failed to create bootstrap admin")
	}

	log.Warn().Str("email", admin.Email).
		Msg("bootstrap admin created with default password, change it immediately")

	return nil
}
