package middlewarectx

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	// TokenCookie — cookie с access-токеном.
	TokenCookie = "auth_token"
	// BusinessCookie — cookie с идентификатором бизнеса.
	BusinessCookie = "business_id"
	// BusinessHeader — заголовок, который получают защищённые страницы.
	BusinessHeader = "x-business-id"
)

var protectedPrefixes = []string{
	"/campaigns",
	"/credits",
	"/analytics",
	"/settings",
	"/dashboard",
	"/profile",
}

var authOnlyPaths = []string{
	"/login",
	"/signup",
	"/forgot-password",
}

// EdgeGuard перенаправляет запросы к страницам дашборда:
// без токена защищённые страницы ведут на /login?redirect=<path>,
// с токеном страницы входа ведут на /campaigns.
// Подпись токена здесь не проверяется, это делает API.
func EdgeGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		token := requestToken(r)

		if isProtected(path) {
			if token == "" {
				target := "/login?redirect=" + url.QueryEscape(path)
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			if c, err := r.Cookie(BusinessCookie); err == nil && c.Value != "" {
				r.Header.Set(BusinessHeader, c.Value)
				w.Header().Set(BusinessHeader, c.Value)
			}
		}

		if token != "" && isAuthOnly(path) {
			http.Redirect(w, r, "/campaigns", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func isProtected(path string) bool {
	for _, p := range protectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isAuthOnly(path string) bool {
	for _, p := range authOnlyPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
