// Package credits читает баланс кредитов бизнеса и историю транзакций через
// кэш запросов, привязанный к текущему access-токену.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/query"
)

const (
	BalancePath      = "/api/business/credits/balance"
	TransactionsPath = "/api/business/credits/transactions"

	BalanceTimeout      = 5 * time.Second
	TransactionsTimeout = 10 * time.Second
	RefetchInterval     = 60 * time.Second
)

// ErrDisabled — запрос не выполняется без access-токена.
var ErrDisabled = errors.New("credits query disabled: no access token")

var (
	balancePrefix      = query.Key{"credits", "balance"}
	transactionsPrefix = query.Key{"credits", "transactions"}
)

// Balance — текущий баланс кредитов.
type Balance struct {
	Credits     int       `json:"credits"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Transaction — одна запись в истории движения кредитов.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionPage — страница истории транзакций.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

// API — REST-вызовы, нужные читателю баланса.
type API interface {
	Get(ctx context.Context, token, path string, query url.Values, timeout time.Duration, out any) error
}

// Reader читает баланс и транзакции через кэш запросов.
type Reader struct {
	api   API
	cache *query.Client
	log   *slog.Logger
	now   func() time.Time
}

// NewReader создаёт Reader.
func NewReader(api API, cache *query.Client, log *slog.Logger) *Reader {
	return &Reader{api: api, cache: cache, log: log, now: time.Now}
}

// BalanceKey — ключ кэша баланса для токена; токен входит в ключ только отпечатком.
func BalanceKey(token string) query.Key {
	return append(append(query.Key{}, balancePrefix...), query.Scope(token))
}

// TransactionsKey — ключ кэша страницы транзакций.
func TransactionsKey(token string, page, limit int) query.Key {
	return append(append(query.Key{}, transactionsPrefix...), query.Scope(token), strconv.Itoa(page), strconv.Itoa(limit))
}

// Balance возвращает баланс; свежий результат берётся из кэша.
func (r *Reader) Balance(ctx context.Context, token string) (Balance, error) {
	const op = "credits.Balance"

	if token == "" {
		return Balance{}, ErrDisabled
	}
	b, err := query.Fetch(ctx, r.cache, BalanceKey(token), r.fetchBalance(token))
	if err != nil {
		return Balance{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Watch держит баланс актуальным: раз в минуту, при Focus и после инвалидации.
// Блокируется до отмены ctx. Без токена сразу сообщает ErrDisabled.
func (r *Reader) Watch(ctx context.Context, token string, onResult func(Balance, error)) {
	if token == "" {
		onResult(Balance{}, ErrDisabled)
		return
	}
	query.Watch(ctx, r.cache, BalanceKey(token), RefetchInterval, r.fetchBalance(token), onResult)
}

// Focus сообщает кэшу о возврате фокуса.
func (r *Reader) Focus() {
	r.cache.Focus()
}

func (r *Reader) fetchBalance(token string) query.Fetcher[Balance] {
	return func(ctx context.Context) (Balance, error) {
		var resp struct {
			Balance int `json:"balance"`
		}
		if err := r.api.Get(ctx, token, BalancePath, nil, BalanceTimeout, &resp); err != nil {
			return Balance{}, err
		}
		return Balance{Credits: resp.Balance, LastUpdated: r.now()}, nil
	}
}

// Transactions возвращает страницу истории транзакций.
func (r *Reader) Transactions(ctx context.Context, token string, page, limit int) (TransactionPage, error) {
	const op = "credits.Transactions"

	if token == "" {
		return TransactionPage{}, ErrDisabled
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	fetch := func(ctx context.Context) (TransactionPage, error) {
		var resp struct {
			Transactions []Transaction `json:"transactions"`
			Rows         []Transaction `json:"rows"`
			Total        int           `json:"total"`
		}
		q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
		if err := r.api.Get(ctx, token, TransactionsPath, q, TransactionsTimeout, &resp); err != nil {
			return TransactionPage{}, err
		}
		rows := resp.Transactions
		if rows == nil {
			rows = resp.Rows
		}
		if rows == nil {
			rows = []Transaction{}
		}
		return TransactionPage{Transactions: rows, Total: resp.Total}, nil
	}

	res, err := query.Fetch(ctx, r.cache, TransactionsKey(token, page, limit), fetch)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// InvalidateAfterPurchase помечает устаревшими баланс и историю транзакций.
func (r *Reader) InvalidateAfterPurchase() {
	const op = "credits.InvalidateAfterPurchase"

	n := r.cache.Invalidate(balancePrefix)
	n += r.cache.Invalidate(transactionsPrefix)
	r.log.Debug("credit caches invalidated", slog.String("op", op), slog.Int("entries", n))
}

// ErrorMessage возвращает сообщение ошибки для показа пользователю.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrDisabled) {
		return ErrDisabled.Error()
	}
	return backend.MessageOf(err)
}
