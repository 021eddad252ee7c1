// Package auth provides authentication and authorization functionality for the application.
//
// This package implements a dynamic Role-Based Access Control (RBAC) system:
// permissions are plain data rows joined at request time, never a compiled
// enumeration, and no permission name is special-cased in code. A wildcard
// "super admin" role is simply a role holding every permission row.
//
// # Session Tokens
//
// The Tokens type issues and verifies signed HS256 session tokens carrying
// the subject's identity (user id, email, role id, korda id). Verification
// failure is a normal outcome, reported through sentinel errors, never a
// panic, and never partial claims.
//
// # Authorization Resolution
//
// The Service type resolves a verified subject into an AuthUser: the
// identity row (soft-deleted rows excluded), its role, and the role's joined
// permission names collected into a flat PermissionSet. Resolution happens
// once per request; there is no cache, so permission changes take effect on
// the next request.
//
// # Permission Checking
//
// PermissionSet provides the pure predicates used by the gate middleware:
//   - HasAll: true iff every named permission is held
//   - HasAny: true iff at least one named permission is held
package auth
