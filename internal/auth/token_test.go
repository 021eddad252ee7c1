package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() *models.User {
	kordaID := "9f0a6a3e-0000-4000-8000-000000000001"

	return &models.User{
		ID:      "5b3f2e1d-0000-4000-8000-000000000002",
		Email:   "alice@example.com",
		RoleID:  "7c4d5e6f-0000-4000-8000-000000000003",
		KordaID: &kordaID,
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	user := testUser()

	raw, err := tokens.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.RoleID, claims.RoleID)
	require.NotNil(t, claims.KordaID)
	assert.Equal(t, *user.KordaID, *claims.KordaID)

	// expiry lands at issue time plus the configured lifetime, within
	// timestamp rounding
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.InDelta(t, time.Hour.Seconds(), lifetime.Seconds(), 1)
}

func TestVerify_Expired(t *testing.T) {
	tokens := NewTokens(testSecret, -time.Minute)

	raw, err := tokens.Issue(testUser())
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims, "expired token must not yield claims")
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewTokens(testSecret, time.Hour)
	verifier := NewTokens("another-secret-another-secret-xx", time.Hour)

	raw, err := issuer.Issue(testUser())
	require.NoError(t, err)

	claims, err := verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestVerify_Malformed(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	for _, raw := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		claims, err := tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", raw)
		assert.Nil(t, claims)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	raw, err := tokens.Issue(testUser())
	require.NoError(t, err)

	tampered := raw[:len(raw)-4] + "AAAA"

	claims, err := tokens.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}
