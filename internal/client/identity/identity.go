// Package identity связывает дашборд с провайдером идентификации (Supabase Auth):
// вход по email и паролю, обновление токена, выход и поток событий
// изменения состояния аутентификации.
package identity

import (
	"strings"
	"time"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
)

// RefreshTokenItem — ключ refresh-токена провайдера в локальном хранилище.
const RefreshTokenItem = "refresh_token"

// Session — сессия провайдера.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         session.User
}

// Expired сообщает, истёк ли access-токен к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// EventKind — тип события аутентификации.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event — изменение состояния аутентификации. Session равна nil для выхода.
type Event struct {
	Kind    EventKind
	Session *Session
}

// MapUser строит пользователя дашборда из данных провайдера: имя берётся из
// метаданных name или full_name, иначе из локальной части email; роль из
// метаданных role, если она допустима.
func MapUser(id, email string, metadata map[string]any) session.User {
	name := metadataString(metadata, "name")
	if name == "" {
		name = metadataString(metadata, "full_name")
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	return session.User{
		ID:         id,
		Email:      email,
		Name:       name,
		Role:       session.ParseRole(metadataString(metadata, "role")),
		BusinessID: metadataString(metadata, "business_id"),
	}
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	s, _ := metadata[key].(string)
	return strings.TrimSpace(s)
}
