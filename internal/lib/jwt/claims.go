package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject возвращается для токена без claim "sub".
var ErrMissingSubject = errors.New("token has no subject")

// Claims повторяет структуру access-токена Supabase.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"` // Роль Postgres, обычно "authenticated"
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// UserID возвращает идентификатор пользователя из claim "sub".
func (c *Claims) UserID() string {
	return c.Subject
}

// MetadataString возвращает строковое значение из user_metadata.
func (c *Claims) MetadataString(key string) string {
	if c.UserMetadata == nil {
		return ""
	}
	v, _ := c.UserMetadata[key].(string)
	return v
}

// EmailVerified сообщает, подтверждена ли почта (user_metadata.email_verified).
func (c *Claims) EmailVerified() bool {
	if c.UserMetadata == nil {
		return false
	}
	v, _ := c.UserMetadata["email_verified"].(bool)
	return v
}

// GenerateToken создаёт токен в формате Supabase, подписывая его секретным ключом.
func (j *MakerImpl) GenerateToken(user TokenUser) (string, error) {
	now := time.Now()
	meta := map[string]any{
		"email_verified": true,
	}
	if user.Name != "" {
		meta["name"] = user.Name
	}
	if user.Role != "" {
		meta["role"] = user.Role
	}
	if user.BusinessID != "" {
		meta["business_id"] = user.BusinessID
	}
	claims := Claims{
		Email:        user.Email,
		Role:         "authenticated",
		UserMetadata: meta,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken проверяет подпись, алгоритм и срок действия токена.
func (j *MakerImpl) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSubject)
	}
	return claims, nil
}
