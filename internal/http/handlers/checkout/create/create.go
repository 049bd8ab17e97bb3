// Package create обрабатывает создание checkout-сессии для покупки кредитов.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/services/checkout"
)

// Service определяет интерфейс создания checkout-сессий.
type Service interface {
	Create(ctx context.Context, req checkout.Request) (*checkout.Session, error)
}

// SessionResponse — успешный ответ с данными сессии.
type SessionResponse struct {
	SessionID string `json:"sessionId" example:"cs_test_a1b2c3"`
	URL       string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_a1b2c3"`
	Success   bool   `json:"success" example:"true"`
}

// Handler обрабатывает запросы на создание checkout-сессии.
type Handler struct {
	log     *slog.Logger
	service Service
	now     func() time.Time
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		now:     time.Now,
	}
}

var clientErrors = []struct {
	err     error
	status  int
	message string
}{
	{checkout.ErrMissingFields, http.StatusBadRequest, "Missing required fields"},
	{checkout.ErrInvalidEmail, http.StatusBadRequest, "Invalid email format"},
	{checkout.ErrRateLimited, http.StatusTooManyRequests, "Rate limit exceeded"},
	{checkout.ErrInvalidPackage, http.StatusBadRequest, "Invalid package ID"},
	{checkout.ErrCreditsMismatch, http.StatusBadRequest, "Credits mismatch"},
	{checkout.ErrPriceMismatch, http.StatusBadRequest, "Price mismatch"},
}

// ServeHTTP godoc
// @Summary Создать checkout-сессию
// @Description Проверяет пакет кредитов и лимит запросов пользователя, создает hosted checkout-сессию Stripe
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body checkout.Request true "Данные покупки"
// @Success 200 {object} SessionResponse "Сессия создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 405 {object} response.ErrorResponse "Метод не поддерживается"
// @Failure 429 {object} response.ErrorResponse "Превышен лимит запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка создания сессии"
// @Router /stripe/create-checkout-session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed"))
		return
	}

	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid request body"))
		return
	}

	session, err := h.service.Create(r.Context(), req)
	if err != nil {
		var rlErr *checkout.RateLimitError
		if errors.As(err, &rlErr) {
			retry := int(rlErr.ResetAt.Sub(h.now()).Seconds()) + 1
			if retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
		}
		for _, ce := range clientErrors {
			if errors.Is(err, ce.err) {
				log.Info("checkout request rejected", slog.String("reason", ce.message))
				w.WriteHeader(ce.status)
				render.JSON(w, r, response.Error(ce.message))
				return
			}
		}
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to create checkout session"))
		return
	}

	render.JSON(w, r, SessionResponse{
		SessionID: session.SessionID,
		URL:       session.URL,
		Success:   true,
	})
}
