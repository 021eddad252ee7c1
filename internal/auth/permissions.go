package auth

// Permission name constants used by route gates and the seeder.
// These are names of data rows, not a closed enumeration: new permissions
// can be created at runtime and granted without touching code.
const (
	// PermMediaRead allows listing and viewing media contents and categories.
	PermMediaRead = "media:read"
	// PermMediaCreate allows creating media contents and categories.
	PermMediaCreate = "media:create"
	// PermMediaUpdate allows editing media contents and categories.
	PermMediaUpdate = "media:update"
	// PermMediaDelete allows deleting media contents and categories.
	PermMediaDelete = "media:delete"
	// PermMediaArchive allows archiving media contents.
	PermMediaArchive = "media:archive"

	// PermUsersRead allows listing and viewing user accounts.
	PermUsersRead = "users:read"
	// PermUsersCreate allows registering new user accounts.
	PermUsersCreate = "users:create"
	// PermUsersUpdate allows editing user accounts.
	PermUsersUpdate = "users:update"
	// PermUsersDelete allows deleting user accounts.
	PermUsersDelete = "users:delete"
	// PermUsersImpersonate allows issuing a session token for another user.
	PermUsersImpersonate = "users:impersonate"

	// PermRolesRead allows listing roles and permissions.
	PermRolesRead = "roles:read"
	// PermRolesCreate allows creating roles and permissions.
	PermRolesCreate = "roles:create"
	// PermRolesUpdate allows editing roles and their permission assignments.
	PermRolesUpdate = "roles:update"
	// PermRolesDelete allows deleting non-system roles.
	PermRolesDelete = "roles:delete"

	// PermKordasRead allows listing and viewing kordas.
	PermKordasRead = "kordas:read"
	// PermKordasCreate allows creating kordas.
	PermKordasCreate = "kordas:create"
	// PermKordasUpdate allows editing kordas.
	PermKordasUpdate = "kordas:update"
	// PermKordasDelete allows deleting kordas.
	PermKordasDelete = "kordas:delete"

	// PermAuditRead allows reading the audit trail.
	PermAuditRead = "audit:read"
)
