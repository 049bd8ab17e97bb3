// Package campaigns — изменение и чтение кампаний через REST API с
// согласованием клиентского кэша после каждой мутации.
package campaigns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/query"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

const basePath = "/api/campaigns"

// ErrInvalidStatus — неизвестный статус кампании.
var ErrInvalidStatus = errors.New("invalid campaign status")

// Status — статус жизненного цикла кампании.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus проверяет строку статуса.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Campaign — кампания бизнеса.
type Campaign struct {
	ID                   string          `json:"id"`
	BusinessID           string          `json:"businessId,omitempty"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	Type                 Type            `json:"type"`
	Status               Status          `json:"status"`
	Budget               decimal.Decimal `json:"budget"`
	CreditsPerInfluencer int             `json:"creditsPerInfluencer,omitempty"`
	Platforms            []string        `json:"platforms"`
	StartDate            *time.Time      `json:"startDate,omitempty"`
	EndDate              *time.Time      `json:"endDate,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Filter — параметры списка кампаний.
type Filter struct {
	Status Status
	Search string
	Page   int
	Limit  int
}

// Page — страница списка.
type Page struct {
	Campaigns []Campaign `json:"campaigns"`
	Total     int        `json:"total"`
}

// API — REST-вызовы.
type API interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

// TokenSource отдаёт текущий access-токен.
type TokenSource interface {
	Token() string
}

var (
	listPrefix   = query.Key{"campaigns", "list"}
	detailPrefix = query.Key{"campaigns", "detail"}
)

// DetailKey — ключ кэша кампании.
func DetailKey(id string) query.Key {
	return append(append(query.Key{}, detailPrefix...), id)
}

// ListKey — ключ кэша страницы списка.
func ListKey(f Filter) query.Key {
	return append(append(query.Key{}, listPrefix...),
		string(f.Status), f.Search, strconv.Itoa(f.Page), strconv.Itoa(f.Limit))
}

// Mutator выполняет CRUD кампаний.
type Mutator struct {
	api    API
	cache  *query.Client
	tokens TokenSource
	log    *slog.Logger
}

// NewMutator создаёт Mutator.
func NewMutator(api API, cache *query.Client, tokens TokenSource, log *slog.Logger) *Mutator {
	return &Mutator{api: api, cache: cache, tokens: tokens, log: log}
}

// List возвращает страницу кампаний.
func (m *Mutator) List(ctx context.Context, f Filter) (Page, error) {
	const op = "campaigns.List"

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	q := url.Values{"page": {strconv.Itoa(f.Page)}, "limit": {strconv.Itoa(f.Limit)}}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	page, err := query.Fetch(ctx, m.cache, ListKey(f), func(ctx context.Context) (Page, error) {
		var p Page
		err := m.api.Do(ctx, backend.Request{Method: http.MethodGet, Path: basePath, Query: q, Token: m.tokens.Token()}, &p)
		if p.Campaigns == nil {
			p.Campaigns = []Campaign{}
		}
		return p, err
	})
	if err != nil {
		return Page{}, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// Get возвращает кампанию по идентификатору.
func (m *Mutator) Get(ctx context.Context, id string) (Campaign, error) {
	const op = "campaigns.Get"

	c, err := query.Fetch(ctx, m.cache, DetailKey(id), func(ctx context.Context) (Campaign, error) {
		var c Campaign
		err := m.api.Do(ctx, backend.Request{Method: http.MethodGet, Path: itemPath(id), Token: m.tokens.Token()}, &c)
		return c, err
	})
	if err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Create создаёт кампанию и инвалидирует списки.
func (m *Mutator) Create(ctx context.Context, in Input) (Campaign, error) {
	const op = "campaigns.Create"

	if err := in.Validate(); err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}

	var c Campaign
	if err := m.do(ctx, http.MethodPost, basePath, in, &c); err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}
	m.cache.Invalidate(listPrefix)

	m.log.Info("campaign created", slog.String("op", op), slog.String("campaign_id", c.ID))
	return c, nil
}

// Update изменяет кампанию и инвалидирует её карточку и списки.
func (m *Mutator) Update(ctx context.Context, id string, in Input) (Campaign, error) {
	const op = "campaigns.Update"

	if err := in.Validate(); err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}

	var c Campaign
	if err := m.do(ctx, http.MethodPut, itemPath(id), in, &c); err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}
	m.cache.Invalidate(DetailKey(id))
	m.cache.Invalidate(listPrefix)

	m.log.Info("campaign updated", slog.String("op", op), slog.String("campaign_id", id))
	return c, nil
}

// Delete удаляет кампанию.
func (m *Mutator) Delete(ctx context.Context, id string) error {
	const op = "campaigns.Delete"

	if err := m.do(ctx, http.MethodDelete, itemPath(id), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.cache.Invalidate(DetailKey(id))
	m.cache.Invalidate(listPrefix)

	m.log.Info("campaign deleted", slog.String("op", op), slog.String("campaign_id", id))
	return nil
}

// Duplicate создаёт копию кампании.
func (m *Mutator) Duplicate(ctx context.Context, id string) (Campaign, error) {
	const op = "campaigns.Duplicate"

	var c Campaign
	if err := m.do(ctx, http.MethodPost, itemPath(id)+"/duplicate", nil, &c); err != nil {
		return Campaign{}, fmt.Errorf("%s: %w", op, err)
	}
	m.cache.Invalidate(listPrefix)

	m.log.Info("campaign duplicated", slog.String("op", op),
		slog.String("source_id", id), slog.String("campaign_id", c.ID))
	return c, nil
}

// UpdateStatus оптимистично меняет статус: карточка в кэше переписывается до
// ответа сервера, при ошибке восстанавливается снимок. В любом случае затем
// инвалидируются карточка и списки.
func (m *Mutator) UpdateStatus(ctx context.Context, id string, status Status) error {
	const op = "campaigns.UpdateStatus"

	log := m.log.With(slog.String("op", op), slog.String("campaign_id", id))

	if _, err := ParseStatus(string(status)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := DetailKey(id)
	tx := m.cache.Begin(key)
	if prev, ok := tx.Previous(); ok {
		if c, ok := prev.(Campaign); ok {
			c.Status = status
			tx.Write(c)
		}
	}

	err := m.do(ctx, http.MethodPatch, itemPath(id)+"/status", map[string]Status{"status": status}, nil)
	if err != nil {
		tx.Rollback()
		log.Warn("status update rejected, rolled back", sl.Err(err))
	}

	m.cache.Invalidate(key)
	m.cache.Invalidate(listPrefix)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("campaign status updated", slog.String("status", string(status)))
	return nil
}

func (m *Mutator) do(ctx context.Context, method, path string, body, out any) error {
	return m.api.Do(ctx, backend.Request{
		Method: method,
		Path:   path,
		Token:  m.tokens.Token(),
		Body:   body,
	}, out)
}

func itemPath(id string) string {
	return basePath + "/" + url.PathEscape(id)
}
