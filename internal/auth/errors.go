package auth

import "errors"

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidOldPassword is returned when the provided old password does not match the user's current password.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrEmailExists is returned when attempting to create a user with an email that already exists.
	ErrEmailExists = errors.New("user with email already exists")

	// ErrUserAccountDisabled is returned when attempting to authenticate a disabled user account.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrNoPasswordSet is returned when password authentication is attempted
	// against an account without a stored credential hash.
	ErrNoPasswordSet = errors.New("account has no password credential")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")
)
