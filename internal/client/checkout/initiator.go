// Package checkout — клиентская половина покупки кредитов: проверяет запрос,
// создаёт hosted checkout-сессию на сервере и переходит на страницу оплаты.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/campaign-dashboard/internal/billing"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/ratelimit"
)

const (
	SessionPath = "/api/stripe/create-checkout-session"
	Timeout     = 10 * time.Second

	// LimiterSnapshot — ключ снимка, под которым CLI хранит окна лимитера между запусками.
	LimiterSnapshot = "checkout-rate-limit"
)

var (
	ErrMissingFields     = errors.New("missing required fields")
	ErrInvalidPackage    = errors.New("invalid package ID")
	ErrCreditsMismatch   = errors.New("credits mismatch")
	ErrPriceMismatch     = errors.New("price mismatch")
	ErrRateLimited       = errors.New("too many checkout attempts, please wait a minute")
	ErrIncompleteSession = errors.New("checkout session response is missing sessionId or url")
)

// RateLimitError сообщает, когда можно повторить попытку.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Request — покупка пакета кредитов.
type Request struct {
	PackageID  string
	Credits    int
	Price      decimal.Decimal
	UserID     string
	BusinessID string
	UserEmail  string
}

// Session — созданная на сервере checkout-сессия.
type Session struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// API — REST-вызов создания сессии.
type API interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

// Navigator выполняет полный переход на страницу оплаты.
type Navigator interface {
	Navigate(target string) error
}

// Invalidator сбрасывает кэши баланса и транзакций.
type Invalidator interface {
	InvalidateAfterPurchase()
}

// Initiator запускает покупку.
type Initiator struct {
	api     API
	limiter ratelimit.Limiter
	nav     Navigator
	caches  Invalidator
	log     *slog.Logger
}

// NewInitiator создаёт Initiator с клиентским лимитером 5 попыток в минуту.
func NewInitiator(api API, nav Navigator, caches Invalidator, log *slog.Logger) *Initiator {
	return &Initiator{
		api:     api,
		limiter: ratelimit.NewMemory(ratelimit.CheckoutPolicy),
		nav:     nav,
		caches:  caches,
		log:     log,
	}
}

// WithLimiter заменяет клиентский лимитер, например на ratelimit.Persistent,
// чтобы окно учитывало попытки из разных процессов.
func (i *Initiator) WithLimiter(l ratelimit.Limiter) *Initiator {
	i.limiter = l
	return i
}

type sessionRequest struct {
	PackageID  string          `json:"packageId"`
	UserID     string          `json:"userId"`
	BusinessID string          `json:"businessId"`
	UserEmail  string          `json:"userEmail"`
	Credits    int             `json:"credits"`
	Price      decimal.Decimal `json:"price"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Success   bool   `json:"success"`
}

// Purchase проверяет запрос, создаёт сессию, открывает страницу оплаты и
// инвалидирует кэши баланса и транзакций.
func (i *Initiator) Purchase(ctx context.Context, req Request) (Session, error) {
	const op = "checkout.Purchase"

	log := i.log.With(
		slog.String("op", op),
		slog.String("package_id", req.PackageID),
	)

	if err := validate(req); err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	d, err := i.limiter.Allow(ctx, req.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !d.Allowed {
		log.Warn("checkout attempt throttled locally")
		return Session{}, fmt.Errorf("%s: %w", op, &RateLimitError{ResetAt: d.ResetAt})
	}

	var resp sessionResponse
	err = i.api.Do(ctx, backend.Request{
		Method:  http.MethodPost,
		Path:    SessionPath,
		Timeout: Timeout,
		Body: sessionRequest{
			PackageID:  req.PackageID,
			UserID:     req.UserID,
			BusinessID: req.BusinessID,
			UserEmail:  req.UserEmail,
			Credits:    req.Credits,
			Price:      req.Price,
		},
	}, &resp)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp.SessionID == "" || resp.URL == "" {
		return Session{}, fmt.Errorf("%s: %w", op, ErrIncompleteSession)
	}

	if err := i.nav.Navigate(resp.URL); err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	i.caches.InvalidateAfterPurchase()

	log.Info("redirected to checkout", slog.String("session_id", resp.SessionID))
	return Session{SessionID: resp.SessionID, URL: resp.URL}, nil
}

func validate(req Request) error {
	if req.PackageID == "" || req.UserID == "" || req.BusinessID == "" || req.UserEmail == "" {
		return ErrMissingFields
	}
	pkg, err := billing.Lookup(req.PackageID)
	if err != nil {
		return ErrInvalidPackage
	}
	if req.Credits != pkg.Credits {
		return ErrCreditsMismatch
	}
	if !req.Price.Equal(pkg.Price) {
		return ErrPriceMismatch
	}
	return nil
}

// ErrorMessage возвращает сообщение ошибки покупки для показа пользователю.
func ErrorMessage(err error) string {
	for _, sentinel := range []error{
		ErrMissingFields, ErrInvalidPackage, ErrCreditsMismatch,
		ErrPriceMismatch, ErrRateLimited, ErrIncompleteSession,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return backend.MessageOf(err)
}
