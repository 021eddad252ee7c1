// Package main provides the entry point for the NASUHA Connect backend.
// It runs a JSON API server using the Fiber framework for managing the
// membership organization's regional branches (kordas), users with dynamic
// role-based permissions, and the media content library. Every mutating
// action is recorded in an append-only audit trail. The application uses
// gorm for data persistence.
package main
