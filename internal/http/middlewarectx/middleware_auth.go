// Package middlewarectx содержит HTTP middleware дашборда.
//
// JWTMiddleware проверяет access-токен Supabase в заголовке Authorization
// и кладёт в контекст идентификатор пользователя, email, бизнес и claims.
// При ошибке проверки возвращает 401 Unauthorized.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/jwt"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID — ключ идентификатора пользователя
	UserID Key = "user_id"
	// Email — ключ email пользователя
	Email Key = "email"
	// BusinessID — ключ идентификатора бизнеса
	BusinessID Key = "business_id"
	// Claims — ключ разобранных claims токена
	Claims Key = "claims"
)

// TokenParser проверяет подпись и срок действия токена.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.Claims, error)
}

// JWTMiddleware возвращает middleware, который проверяет Bearer-токен.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserID, claims.UserID())
			ctx = context.WithValue(ctx, Email, claims.Email)
			ctx = context.WithValue(ctx, BusinessID, claims.MetadataString("business_id"))
			ctx = context.WithValue(ctx, Claims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom возвращает идентификатор пользователя из контекста.
func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(UserID).(string)
	return v, ok && v != ""
}

// ClaimsFrom возвращает claims токена из контекста.
func ClaimsFrom(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(Claims).(*jwt.Claims)
	return c, ok && c != nil
}
