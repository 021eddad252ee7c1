// Package auth provides the request authentication middleware and the
// permission gate middleware for the JSON API.
//
// The authentication middleware walks a fixed state machine per request:
// missing bearer token (401), invalid or expired token (401), unknown or
// soft-deleted identity (401), inactive identity (403), authenticated. On
// success the resolved identity and the verified token claims are attached
// to the request scope; exactly one identity lookup (with its permission
// join) happens per request.
//
// The gate middlewares are pure predicates over the attached permission set.
// They must run after authentication; a missing identity is treated as an
// ordering error at the call site and rejected with 401 (fail safe).
package auth
