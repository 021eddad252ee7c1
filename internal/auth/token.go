package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

// Claims are the session token claims. They are immutable once issued and
// remain valid until expiry; there is no server-side revocation.
type Claims struct {
	Email   string  `json:"email"`
	RoleID  string  `json:"roleId"`
	KordaID *string `json:"kordaId,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed session tokens.
type Tokens struct {
	secret []byte
	expiry time.Duration
}

// NewTokens creates a token service with the given signing secret and lifetime.
// Secret strength is validated at config load, not here.
func NewTokens(secret string, expiry time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue produces a signed, time-bounded token for the given user.
func (t *Tokens) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := Claims{
		Email:   user.Email,
		RoleID:  user.RoleID,
		KordaID: user.KordaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return signed, nil
}

// Verify checks the signature and expiry of a raw token string.
// Any failure returns nil claims with ErrTokenExpired or ErrInvalidToken;
// untrusted input is an expected condition, not an exceptional one.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := new(Claims)

	_, err := jwt.ParseWithClaims(raw, claims,
		func(_ *jwt.Token) (interface{}, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidToken
	}

	return claims, nil
}
