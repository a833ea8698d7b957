package utils

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("acc-1", "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	claims := Claims{
		AccountID: "acc-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestNewAPIKey(t *testing.T) {
	a, err := NewAPIKey()
	require.NoError(t, err)
	b, err := NewAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, IsAPIKey(a))
	assert.False(t, IsAPIKey("cak_short"))
	assert.False(t, IsAPIKey("Bearer "+a))
}

func TestNewReferralCode(t *testing.T) {
	code, err := NewReferralCode()
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Regexp(t, `^[0-9A-F]{8}$`, code)
}

func TestNilCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	var c *Cache
	found, err := c.Get(ctx, "k", &struct{}{})
	assert.False(t, found)
	assert.NoError(t, err)
	assert.NoError(t, c.Set(ctx, "k", 1))
	assert.NoError(t, c.Delete(ctx, "k"))

	empty := NewCache(nil, time.Minute)
	found, err = empty.Get(ctx, "k", &struct{}{})
	assert.False(t, found)
	assert.NoError(t, err)
}
