package dashboardapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/checkout/create"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/health"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/profile/account"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/profile/read"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/profile/settings"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campaign-dashboard/internal/metrics"
)

// ProfileService объединяет операции профиля, нужные обработчикам.
type ProfileService interface {
	read.Service
	account.Service
	settings.Service
}

// Deps — зависимости маршрутов.
type Deps struct {
	Checkout      create.Service
	Profile       ProfileService
	Tokens        middlewarectx.TokenParser
	GlobalLimiter *rate.Limiter
	Metrics       *metrics.Metrics
	Health        map[string]health.Pinger
	WebRoot       string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, d.GlobalLimiter, d.Metrics))

		r.Handle("/stripe/create-checkout-session", create.New(logger, d.Checkout))

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Get("/profile", read.New(logger, d.Profile).ServeHTTP)
			r.Get("/profile/account", account.New(logger, d.Profile).ServeHTTP)
			r.Handle("/profile/display", settings.NewDisplay(logger, d.Profile))
			r.Handle("/profile/privacy", settings.NewPrivacy(logger, d.Profile))
		})
	})

	r.Get("/healthz", health.New(logger, d.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	if d.WebRoot != "" {
		r.Handle("/*", middlewarectx.EdgeGuard(http.FileServer(http.Dir(d.WebRoot))))
	}
}
