package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/cache"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-minimum-32-characters-long"

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-123", "test@example.com", rbac.RoleSales, secret, 24)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, rbac.RoleSales, claims.Role)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateJWT_Rejects(t *testing.T) {
	valid, err := GenerateJWT("u1", "a@b.c", rbac.RoleAdmin, secret, 1)
	require.NoError(t, err)

	expired, err := GenerateJWT("u1", "a@b.c", rbac.RoleAdmin, secret, -1)
	require.NoError(t, err)

	unknownRole, err := GenerateJWT("u1", "a@b.c", rbac.Role("superuser"), secret, 1)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1", Role: rbac.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "another-secret-key-of-sufficient-length"},
		{"expired", expired, secret},
		{"unknown role", unknownRole, secret},
		{"unsigned", none, secret},
		{"garbage", "not.a.token", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

func TestTokenBlacklist(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Now())
	bl := NewTokenBlacklist(cache.NewMemoryStore(clk))

	token, err := GenerateJWT("u1", "a@b.c", rbac.RoleViewer, secret, 1)
	require.NoError(t, err)

	claims, err := ValidateJWTWithBlacklist(ctx, token, secret, bl)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	require.NoError(t, bl.Add(ctx, token, time.Hour))
	_, err = ValidateJWTWithBlacklist(ctx, token, secret, bl)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	clk.Advance(time.Hour)
	revoked, err := bl.IsBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse once the token itself has expired")

	require.NoError(t, bl.Add(ctx, "other", 0))
	revoked, err = bl.IsBlacklisted(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword123", hashed)

	again, err := HashPassword("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again, "bcrypt salts every hash")

	assert.True(t, CheckPassword(hashed, "testpassword123"))
	assert.False(t, CheckPassword(hashed, "wrongpassword"))
	assert.False(t, CheckPassword("", "testpassword123"))
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
