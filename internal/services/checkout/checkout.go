// Package checkout создаёт hosted checkout-сессии для покупки пакетов кредитов.
//
// Порядок проверок запроса фиксирован: обязательные поля, формат email,
// лимит запросов пользователя, пакет, совпадение кредитов и цены.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/campaign-dashboard/internal/billing"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/metrics"
	"github.com/magabrotheeeer/campaign-dashboard/internal/paymentprovider"
	"github.com/magabrotheeeer/campaign-dashboard/internal/ratelimit"
)

// EventSessionCreated — тип события о созданной сессии.
const EventSessionCreated = "checkout.session.created"

// SourceWeb — значение metadata.source для сессий из дашборда.
const SourceWeb = "web"

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidPackage  = errors.New("invalid package id")
	ErrCreditsMismatch = errors.New("credits mismatch")
	ErrPriceMismatch   = errors.New("price mismatch")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RateLimitError возвращается, когда пользователь исчерпал окно.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Request — запрос на создание сессии. Credits и Price необязательны,
// но если переданы, должны совпадать со значениями пакета.
type Request struct {
	PackageID  string           `json:"packageId" validate:"required"`
	UserID     string           `json:"userId" validate:"required"`
	BusinessID string           `json:"businessId" validate:"required"`
	UserEmail  string           `json:"userEmail" validate:"required"`
	Credits    *int             `json:"credits,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// Session — созданная checkout-сессия.
type Session struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// SessionCreated — полезная нагрузка события EventSessionCreated.
type SessionCreated struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	BusinessID  string `json:"businessId"`
	PackageID   string `json:"packageId"`
	Credits     int    `json:"credits"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

// Provider создаёт сессию у платёжного провайдера.
type Provider interface {
	CreateCheckoutSession(req paymentprovider.CheckoutSessionRequest) (*paymentprovider.CheckoutSession, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, event rabbitmq.Event) error
}

// URLs — адреса возврата после оплаты.
type URLs struct {
	Success string
	Cancel  string
}

// Service реализует создание checkout-сессий.
type Service struct {
	log       *slog.Logger
	limiter   ratelimit.Limiter
	provider  Provider
	publisher Publisher
	metrics   *metrics.Metrics
	urls      URLs
	validate  *validator.Validate
}

// NewService создаёт сервис. publisher и m могут быть nil.
func NewService(log *slog.Logger, limiter ratelimit.Limiter, provider Provider, publisher Publisher, m *metrics.Metrics, urls URLs) *Service {
	return &Service{
		log:       log,
		limiter:   limiter,
		provider:  provider,
		publisher: publisher,
		metrics:   m,
		urls:      urls,
		validate:  validator.New(),
	}
}

// Create проверяет запрос и создаёт сессию у провайдера.
func (s *Service) Create(ctx context.Context, req Request) (*Session, error) {
	const op = "services.checkout.Create"
	log := s.log.With(slog.String("op", op), slog.String("user_id", req.UserID))

	if err := s.validate.Struct(req); err != nil {
		s.metrics.CheckoutRejected("missing_fields")
		return nil, ErrMissingFields
	}
	if !emailRe.MatchString(req.UserEmail) {
		s.metrics.CheckoutRejected("invalid_email")
		return nil, ErrInvalidEmail
	}

	decision, err := s.limiter.Allow(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !decision.Allowed {
		s.metrics.CheckoutRejected("rate_limited")
		s.metrics.RateLimited("checkout")
		log.Warn("checkout rate limit exceeded", slog.Int("count", decision.Count))
		return nil, &RateLimitError{ResetAt: decision.ResetAt}
	}

	pkg, err := billing.Lookup(req.PackageID)
	if err != nil {
		s.metrics.CheckoutRejected("invalid_package")
		return nil, ErrInvalidPackage
	}
	if req.Credits != nil && *req.Credits != pkg.Credits {
		s.metrics.CheckoutRejected("credits_mismatch")
		return nil, ErrCreditsMismatch
	}
	if req.Price != nil && !req.Price.Equal(pkg.Price) {
		s.metrics.CheckoutRejected("price_mismatch")
		return nil, ErrPriceMismatch
	}

	metadata := map[string]string{
		"userId":     req.UserID,
		"businessId": req.BusinessID,
		"packageId":  pkg.ID,
		"credits":    strconv.Itoa(pkg.Credits),
		"source":     SourceWeb,
	}

	session, err := s.provider.CreateCheckoutSession(paymentprovider.CheckoutSessionRequest{
		ProductName:   pkg.Name(),
		Description:   fmt.Sprintf("%d credits for influencer campaigns", pkg.Credits),
		UnitAmount:    pkg.UnitAmount(),
		Currency:      billing.Currency,
		CustomerEmail: req.UserEmail,
		SuccessURL:    s.urls.Success,
		CancelURL:     s.urls.Cancel,
		Metadata:      metadata,
	})
	if err != nil {
		s.metrics.CheckoutRejected("provider_error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.CheckoutCreated(pkg.ID)
	log.Info("checkout session created",
		slog.String("session_id", session.ID),
		slog.String("package_id", pkg.ID),
	)

	s.publishCreated(ctx, log, SessionCreated{
		SessionID:   session.ID,
		UserID:      req.UserID,
		BusinessID:  req.BusinessID,
		PackageID:   pkg.ID,
		Credits:     pkg.Credits,
		AmountCents: pkg.UnitAmount(),
		Currency:    billing.Currency,
	})

	return &Session{SessionID: session.ID, URL: session.URL}, nil
}

// Ошибка публикации не отменяет уже созданную сессию.
func (s *Service) publishCreated(ctx context.Context, log *slog.Logger, payload SessionCreated) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, rabbitmq.NewEvent(EventSessionCreated, payload)); err != nil {
		log.Error("failed to publish checkout event", sl.Err(err))
	}
}
