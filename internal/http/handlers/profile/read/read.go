// Package read реализует HTTP-обработчик получения профиля бизнеса текущего пользователя.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/models"
	"github.com/magabrotheeeer/campaign-dashboard/internal/services/profile"
)

// Service описывает чтение профиля.
type Service interface {
	Profile(ctx context.Context, userID string) (*models.BusinessProfile, error)
}

// Handler обрабатывает GET /api/profile.
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
// @Summary Профиль бизнеса
// @Tags Profile
// @Produce  json
// @Success 200 {object} response.Response{data=models.BusinessProfile}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Профиль не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /profile [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	p, err := h.service.Profile(r.Context(), userID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("Profile not found"))
		return
	}
	if err != nil {
		log.Error("failed to read profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to fetch profile"))
		return
	}

	render.JSON(w, r, response.OK(p))
}
