// Package settings реализует HTTP-обработчики чтения и частичного обновления
// настроек профиля: отображение и приватность.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/models"
	"github.com/magabrotheeeer/campaign-dashboard/internal/services/profile"
)

// Service описывает работу с настройками профиля.
type Service interface {
	DisplaySettings(ctx context.Context, userID string) (models.DisplaySettings, error)
	UpdateDisplaySettings(ctx context.Context, userID string, patch models.DisplaySettingsPatch) (models.DisplaySettings, error)
	PrivacySettings(ctx context.Context, userID string) (models.PrivacySettings, error)
	UpdatePrivacySettings(ctx context.Context, userID string, patch models.PrivacySettingsPatch) (models.PrivacySettings, error)
}

// Handler обслуживает GET и PATCH одного вида настроек.
type Handler struct {
	log    *slog.Logger
	kind   models.SettingsKind
	get    func(ctx context.Context, userID string) (any, error)
	update func(ctx context.Context, userID string, body *json.Decoder) (any, error)
}

// NewDisplay создает обработчик /api/profile/display.
func NewDisplay(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:  log,
		kind: models.SettingsDisplay,
		get: func(ctx context.Context, userID string) (any, error) {
			return service.DisplaySettings(ctx, userID)
		},
		update: func(ctx context.Context, userID string, body *json.Decoder) (any, error) {
			var patch models.DisplaySettingsPatch
			if err := body.Decode(&patch); err != nil {
				return nil, errDecode{err}
			}
			return service.UpdateDisplaySettings(ctx, userID, patch)
		},
	}
}

// NewPrivacy создает обработчик /api/profile/privacy.
func NewPrivacy(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:  log,
		kind: models.SettingsPrivacy,
		get: func(ctx context.Context, userID string) (any, error) {
			return service.PrivacySettings(ctx, userID)
		},
		update: func(ctx context.Context, userID string, body *json.Decoder) (any, error) {
			var patch models.PrivacySettingsPatch
			if err := body.Decode(&patch); err != nil {
				return nil, errDecode{err}
			}
			return service.UpdatePrivacySettings(ctx, userID, patch)
		},
	}
}

type errDecode struct{ err error }

func (e errDecode) Error() string { return e.err.Error() }

// ServeHTTP godoc
// @Summary Настройки профиля
// @Description GET возвращает настройки со значениями по умолчанию, PATCH применяет частичное обновление
// @Tags Profile
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 405 {object} response.ErrorResponse "Метод не поддерживается"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /profile/display [get]
// @Router /profile/display [patch]
// @Router /profile/privacy [get]
// @Router /profile/privacy [patch]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.settings"
	log := h.log.With(
		slog.String("op", op),
		slog.String("kind", string(h.kind)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var (
		result any
		err    error
	)
	switch r.Method {
	case http.MethodGet:
		result, err = h.get(r.Context(), userID)
	case http.MethodPatch:
		result, err = h.update(r.Context(), userID, json.NewDecoder(r.Body))
	default:
		w.Header().Set("Allow", "GET, PATCH")
		w.WriteHeader(http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed"))
		return
	}

	var (
		decodeErr errDecode
		verrs     validator.ValidationErrors
	)
	switch {
	case err == nil:
		render.JSON(w, r, response.OK(result))
	case errors.As(err, &decodeErr):
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid request body"))
	case errors.As(err, &verrs):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
	case errors.Is(err, profile.ErrInvalidTimezone):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("field Timezone is not valid"))
	default:
		log.Error("failed to process settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to process settings"))
	}
}
