package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otakuhub/pkg/models"
)

func testTokens() TokenService {
	return TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "otakuhub",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	ts := testTokens()
	u := &models.User{ID: "550e8400-e29b-41d4-a716-446655440000", Username: "alice"}

	token, exp, err := ts.IssueAccess(u)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "otakuhub", claims.Issuer)
}

func TestTokenService_RefreshCarriesOnlySubject(t *testing.T) {
	ts := testTokens()

	token, err := ts.IssueRefresh("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "550e8400-e29b-41d4-a716-446655440000", claims.Subject)
	require.Empty(t, claims.UserID)
	require.Empty(t, claims.Username)
}

func TestTokenService_Expired(t *testing.T) {
	ts := testTokens()
	ts.AccessTTL = -time.Minute

	token, _, err := ts.IssueAccess(&models.User{ID: "x", Username: "alice"})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_WrongSecret(t *testing.T) {
	ts := testTokens()

	token, _, err := ts.IssueAccess(&models.User{ID: "x", Username: "alice"})
	require.NoError(t, err)

	other := testTokens()
	other.Secret = []byte("different-secret")
	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_Garbage(t *testing.T) {
	ts := testTokens()

	_, err := ts.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
