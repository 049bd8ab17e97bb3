// Package health реализует проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campaign-dashboard/internal/http/response"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

// Pinger — зависимость, доступность которой входит в проверку.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc позволяет передать функцию как Pinger.
type PingFunc func(ctx context.Context) error

// PingContext вызывает f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Handler отвечает на GET /healthz.
type Handler struct {
	log  *slog.Logger
	deps  map[string]Pinger
}

// New создает Handler. deps может быть пустым.
func New(log *slog.Logger, deps map[string]Pinger) *Handler {
	return &Handler{
		log:  log,
		deps: deps,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse
// @Router /healthz [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	for name, dep := range h.deps {
		if err := dep.PingContext(ctx); err != nil {
			h.log.Error("dependency unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(name+" unavailable"))
			return
		}
		status[name] = "ok"
	}
	render.JSON(w, r, response.OK(status))
}
