// Package account реализует HTTP-обработчик сведений об учётной записи.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/jwt"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/models"
)

// Service собирает сведения об учётной записи.
type Service interface {
	Account(ctx context.Context, claims *jwt.Claims) (*models.AccountInfo, error)
}

// Handler обрабатывает GET /api/profile/account.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Учётная запись
// @Tags Profile
// @Produce  json
// @Success 200 {object} response.Response{data=models.AccountInfo}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /profile/account [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.account"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFrom(r.Context())
	if !ok {
		log.Error("claims not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	info, err := h.service.Account(r.Context(), claims)
	if err != nil {
		log.Error("failed to build account info", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to fetch account"))
		return
	}

	render.JSON(w, r, response.OK(info))
}
