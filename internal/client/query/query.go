// Package query — клиентский кэш запросов: свежесть данных, повторные попытки
// с экспоненциальной задержкой, инвалидация по префиксу ключа, фоновые
// обновления и оптимистичные записи с откатом.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Key — иерархический ключ запроса, например {"credits", "balance", token}.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// Scope — отпечаток секрета (например, access-токена) для части ключа.
// Ключ различает сессии, но сам токен не попадает ни в логи, ни в ошибки.
func Scope(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return "s:" + hex.EncodeToString(sum[:8])
}

// HasPrefix сообщает, начинается ли ключ с prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Options — политика свежести и повторов.
type Options struct {
	StaleTime time.Duration
	Retries   int
	RetryBase time.Duration
	RetryMax  time.Duration
}

// DefaultOptions: данные свежие 30 секунд, 3 повтора с задержкой от 1 с, удваиваясь до 30 с.
var DefaultOptions = Options{
	StaleTime: 30 * time.Second,
	Retries:   3,
	RetryBase: time.Second,
	RetryMax:  30 * time.Second,
}

// Fetcher загружает значение по сети.
type Fetcher[T any] func(ctx context.Context) (T, error)

type entry struct {
	key       Key
	value     any
	updatedAt time.Time
	stale     bool
	gen       uint64
}

type watcher struct {
	key  Key
	wake chan struct{}
}

// Client хранит результаты запросов по ключам.
type Client struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	gens     map[string]uint64
	watchers map[*watcher]struct{}
}

// New создаёт кэш с заданной политикой.
func New(log *slog.Logger, opts Options) *Client {
	return &Client{
		opts:     opts,
		log:      log,
		now:      time.Now,
		entries:  make(map[string]*entry),
		gens:     make(map[string]uint64),
		watchers: make(map[*watcher]struct{}),
	}
}

// WithClock подменяет источник времени (используется в тестах).
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Fetch возвращает свежее значение из кэша или загружает его через fn.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn Fetcher[T]) (T, error) {
	if v, ok := c.fresh(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	return Refetch(ctx, c, key, fn)
}

// Refetch всегда идёт в сеть, повторяя неудачные попытки по политике кэша.
// Результат не записывается, если за время запроса ключ был перезаписан через SetData.
func Refetch[T any](ctx context.Context, c *Client, key Key, fn Fetcher[T]) (T, error) {
	const op = "query.Refetch"

	gen := c.generation(key)

	var v T
	attempt := 0
	operation := func() error {
		attempt++
		res, err := fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.Debug("query attempt failed",
				slog.String("op", op),
				slog.String("key", key.String()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}
		v = res
		return nil
	}

	if err := backoff.Retry(operation, c.backoff(ctx)); err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %s: %w", op, key, err)
	}

	c.store(key, v, gen)
	return v, nil
}

// GetData возвращает закэшированное значение без учёта свежести.
func GetData[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key.String()]
	if !ok {
		return zero, false
	}
	typed, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// SetData записывает значение напрямую, отменяя запись результатов уже запущенных запросов.
func (c *Client) SetData(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := key.String()
	c.gens[s]++
	c.entries[s] = &entry{key: key, value: v, updatedAt: c.now(), gen: c.gens[s]}
}

// Invalidate помечает устаревшими все записи с префиксом prefix и будит их наблюдателей.
// Возвращает число затронутых записей.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			n++
		}
	}
	var wake []*watcher
	for w := range c.watchers {
		if w.key.HasPrefix(prefix) {
			wake = append(wake, w)
		}
	}
	c.mu.Unlock()

	for _, w := range wake {
		w.notify()
	}
	return n
}

// Focus сообщает о возврате фокуса: наблюдатели перезапрашивают устаревшие данные.
func (c *Client) Focus() {
	c.mu.Lock()
	wake := make([]*watcher, 0, len(c.watchers))
	for w := range c.watchers {
		wake = append(wake, w)
	}
	c.mu.Unlock()

	for _, w := range wake {
		w.notify()
	}
}

// IsStale сообщает, нужно ли перезапросить ключ.
func (c *Client) IsStale(key Key) bool {
	_, ok := c.fresh(key)
	return !ok
}

// Watch загружает значение, затем обновляет его каждые interval, при Focus и при
// инвалидации ключа. Каждый результат передаётся в onResult. Блокируется до отмены ctx.
func Watch[T any](ctx context.Context, c *Client, key Key, interval time.Duration, fn Fetcher[T], onResult func(T, error)) {
	w := &watcher{key: key, wake: make(chan struct{}, 1)}
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.watchers, w)
		c.mu.Unlock()
	}()

	onResult(Fetch(ctx, c, key, fn))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := Refetch(ctx, c, key, fn)
			if ctx.Err() != nil {
				return
			}
			onResult(v, err)
		case <-w.wake:
			v, err := Fetch(ctx, c, key, fn)
			if ctx.Err() != nil {
				return
			}
			onResult(v, err)
		}
	}
}

func (w *watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (c *Client) fresh(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.stale {
		return nil, false
	}
	if c.now().Sub(e.updatedAt) >= c.opts.StaleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Client) generation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key.String()]
}

func (c *Client) store(key Key, v any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := key.String()
	if c.gens[s] != gen {
		return
	}
	c.entries[s] = &entry{key: key, value: v, updatedAt: c.now(), gen: gen}
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryBase
	b.Multiplier = 2
	b.MaxInterval = c.opts.RetryMax
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	var retries uint64
	if c.opts.Retries > 0 {
		retries = uint64(c.opts.Retries)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}
