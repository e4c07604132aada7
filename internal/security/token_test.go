package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-42", time.Minute)
	require.NoError(t, err)

	owner, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-42", owner)
}

func TestParseAccessTokenRejects(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-42", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateAccessToken("secret", "user-42", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = ParseAccessToken("not-a-token", "secret")
	assert.Error(t, err)
}

func TestParseAccessTokenFallsBackToSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	owner, err := ParseAccessToken(signed, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-7", owner)
}
