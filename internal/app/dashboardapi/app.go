// Package dashboardapi собирает HTTP-сервис дашборда: checkout-сессии,
// профиль и настройки, метрики и охрану страниц.
package dashboardapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/campaign-dashboard/internal/cache"
	"github.com/magabrotheeeer/campaign-dashboard/internal/config"
	"github.com/magabrotheeeer/campaign-dashboard/internal/http/handlers/health"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/jwt"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/metrics"
	"github.com/magabrotheeeer/campaign-dashboard/internal/migrations"
	"github.com/magabrotheeeer/campaign-dashboard/internal/paymentprovider"
	"github.com/magabrotheeeer/campaign-dashboard/internal/ratelimit"
	"github.com/magabrotheeeer/campaign-dashboard/internal/services/checkout"
	"github.com/magabrotheeeer/campaign-dashboard/internal/services/profile"
	"github.com/magabrotheeeer/campaign-dashboard/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App — собранный сервис с его ресурсами.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	ch      *amqp.Channel
	sweeper *ratelimit.Memory
	sweep   time.Duration
}

// New подключает хранилища и брокер и собирает маршруты.
// Redis и RabbitMQ необязательны: без адреса сервис работает без кеша, с лимитером в памяти и без событий.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "dashboardapi.New"
	a := &App{logger: logger, sweep: cfg.SweepInterval}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.db = db
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var settingsCache profile.Cache
	pingers := map[string]health.Pinger{"postgres": db.DB}
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.cache = c
		settingsCache = c
		pingers["redis"] = health.PingFunc(func(ctx context.Context) error {
			return c.Client().Ping(ctx).Err()
		})
	}

	limiter, err := a.checkoutLimiter(cfg.RateLimit)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var publisher checkout.Publisher
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.conn = conn
		ch, err := rabbitmq.SetupChannel(conn)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.ch = ch
		publisher = rabbitmq.NewPublisher(ch, rabbitmq.BillingExchange)
		logger.Info("billing events enabled", slog.String("exchange", rabbitmq.BillingExchange))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	deps := Deps{
		Checkout: checkout.NewService(logger, limiter, paymentprovider.NewClient(cfg.Stripe.SecretKey), publisher, m, checkout.URLs{
			Success: cfg.SuccessURL,
			Cancel:  cfg.CancelURL,
		}),
		Profile:       profile.NewService(db, settingsCache, m, logger),
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecret, 0),
		GlobalLimiter: rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		Metrics:       m,
		Health:        pingers,
		WebRoot:       cfg.WebRoot,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, deps)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func (a *App) checkoutLimiter(cfg config.RateLimit) (ratelimit.Limiter, error) {
	switch cfg.Backend {
	case "memory", "":
		a.sweeper = ratelimit.NewMemory(ratelimit.CheckoutPolicy)
		return a.sweeper, nil
	case "redis":
		if a.cache == nil {
			return nil, errors.New("rate_limit.backend=redis requires redis_connection.addressredis")
		}
		return ratelimit.NewRedis(a.cache.Client(), ratelimit.CheckoutPolicy, "ratelimit:checkout:"), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	if a.sweeper != nil {
		go a.sweeper.Run(ctx, a.sweep, a.logger)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
