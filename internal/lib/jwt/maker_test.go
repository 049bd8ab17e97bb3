package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	maker := NewJWTMaker("test_secret_key_1234567890", 15*time.Minute)

	tests := []struct {
		name string
		user TokenUser
	}{
		{
			name: "business owner",
			user: TokenUser{UserID: "u1", Email: "owner@brand.io", Name: "Owner", Role: "business", BusinessID: "b1"},
		},
		{
			name: "admin without business",
			user: TokenUser{UserID: "u2", Email: "admin@brand.io", Role: "admin"},
		},
		{
			name: "bare user",
			user: TokenUser{UserID: "u3", Email: "someone@brand.io"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.user)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.user.UserID, claims.UserID())
			assert.Equal(t, tt.user.Email, claims.Email)
			assert.Equal(t, "authenticated", claims.Role)
			assert.Equal(t, tt.user.BusinessID, claims.MetadataString("business_id"))
			assert.Equal(t, tt.user.Role, claims.MetadataString("role"))
			assert.True(t, claims.EmailVerified())
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute)

	validToken, err := maker.GenerateToken(TokenUser{UserID: "u1", Email: "a@b.co"})
	require.NoError(t, err)

	expired, err := NewJWTMaker(secretKey, -time.Hour).GenerateToken(TokenUser{UserID: "u1"})
	require.NoError(t, err)

	wrongSecret, err := NewJWTMaker("wrong_secret", time.Hour).GenerateToken(TokenUser{UserID: "u1"})
	require.NoError(t, err)

	noSubject, err := maker.GenerateToken(TokenUser{Email: "a@b.co"})
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: wrongSecret},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "missing subject", token: noSubject},
		{name: "none algorithm", token: noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestClaims_MetadataOnEmptyClaims(t *testing.T) {
	c := &Claims{}
	assert.Equal(t, "", c.MetadataString("name"))
	assert.False(t, c.EmailVerified())
}
