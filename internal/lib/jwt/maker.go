// Package jwt проверяет access-токены Supabase (HS256, подписанные JWT secret проекта)
// и умеет выпускать такие же токены для локальной разработки и тестов.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга access-токенов.
type Maker interface {
	GenerateToken(user TokenUser) (string, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// TokenUser данные пользователя, которые кладутся в токен.
type TokenUser struct {
	UserID     string
	Email      string
	Name       string
	Role       string
	BusinessID string
}

// MakerImpl реализует Maker с использованием JWT secret проекта Supabase
// и времени жизни выпускаемых токенов.
type MakerImpl struct {
	secretKey string        // JWT secret проекта
	tokenTTL  time.Duration // Время жизни выпускаемых токенов
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
