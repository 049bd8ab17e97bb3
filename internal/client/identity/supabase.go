package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

var (
	// ErrNoSession — операция требует активной сессии провайдера.
	ErrNoSession = errors.New("no provider session")
	// ErrIncompleteSession — провайдер вернул сессию без токенов.
	ErrIncompleteSession = errors.New("provider returned an incomplete session")
)

// AuthAPI — методы Supabase Auth, которыми пользуется адаптер.
type AuthAPI interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	RefreshToken(refreshToken string) (*types.TokenResponse, error)
}

// Items — долговременное хранилище refresh-токена.
type Items interface {
	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (string, bool, error)
	RemoveItem(ctx context.Context, key string) error
}

// Supabase — провайдер идентификации поверх Supabase Auth.
type Supabase struct {
	api    AuthAPI
	logout func(accessToken string) error
	items  Items
	log    *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *Session
	subs    map[int]func(Event)
	nextSub int
}

// NewSupabase создаёт провайдер для проекта Supabase.
func NewSupabase(projectURL, anonKey string, items Items, log *slog.Logger) (*Supabase, error) {
	const op = "identity.NewSupabase"

	client, err := supabase.NewClient(projectURL, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logout := func(accessToken string) error {
		return client.Auth.WithToken(accessToken).Logout()
	}
	return newSupabase(client.Auth, logout, items, log), nil
}

func newSupabase(api AuthAPI, logout func(string) error, items Items, log *slog.Logger) *Supabase {
	return &Supabase{
		api:    api,
		logout: logout,
		items:  items,
		log:    log,
		now:    time.Now,
		subs:   make(map[int]func(Event)),
	}
}

// Subscribe подписывает fn на события аутентификации. Обработчик вызывается
// синхронно и не должен блокироваться.
func (s *Supabase) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// CurrentSession возвращает текущую сессию. Если в памяти её нет или она
// истекла, сессия восстанавливается по сохранённому refresh-токену.
// Отсутствие сессии не является ошибкой: возвращается nil.
func (s *Supabase) CurrentSession(ctx context.Context) (*Session, error) {
	const op = "identity.CurrentSession"

	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil && !cur.Expired(s.now()) {
		c := *cur
		return &c, nil
	}

	refreshToken, err := s.refreshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if refreshToken == "" {
		return nil, nil
	}

	sess, err := s.exchange(ctx, refreshToken)
	if err != nil {
		s.log.Warn("stored session could not be restored", slog.String("op", op), sl.Err(err))
		s.clear(ctx)
		return nil, nil
	}
	s.emit(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

// SignIn выполняет вход по email и паролю.
func (s *Supabase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	const op = "identity.SignIn"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := s.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sess, err := s.store(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("signed in", slog.String("op", op), slog.String("user_id", sess.User.ID))
	s.emit(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

// SignOut завершает сессию у провайдера, затем забывает её локально.
// Локальное состояние очищается даже при ошибке провайдера.
func (s *Supabase) SignOut(ctx context.Context) error {
	const op = "identity.SignOut"

	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	var err error
	if cur != nil {
		if err = s.logout(cur.AccessToken); err != nil {
			s.log.Warn("provider sign-out failed", slog.String("op", op), sl.Err(err))
			err = fmt.Errorf("%s: %w", op, err)
		}
	}

	s.clear(ctx)
	s.emit(Event{Kind: EventSignedOut})
	return err
}

// Refresh обменивает refresh-токен на новую пару токенов. Подходит как
// session.Refresher: accessToken используется только для проверки наличия сессии.
func (s *Supabase) Refresh(ctx context.Context, accessToken string) (string, *session.User, error) {
	const op = "identity.Refresh"

	if accessToken == "" {
		return "", nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	refreshToken, err := s.refreshToken(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if refreshToken == "" {
		return "", nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	sess, err := s.exchange(ctx, refreshToken)
	if err != nil {
		s.clear(ctx)
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	s.emit(Event{Kind: EventTokenRefreshed, Session: sess})
	user := sess.User
	return sess.AccessToken, &user, nil
}

func (s *Supabase) exchange(ctx context.Context, refreshToken string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := s.api.RefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, resp)
}

func (s *Supabase) refreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil && cur.RefreshToken != "" {
		return cur.RefreshToken, nil
	}

	v, ok, err := s.items.GetItem(ctx, RefreshTokenItem)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

func (s *Supabase) store(ctx context.Context, resp *types.TokenResponse) (*Session, error) {
	if resp == nil || resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, ErrIncompleteSession
	}
	sess := s.toSession(resp.Session)

	if err := s.items.SetItem(ctx, RefreshTokenItem, sess.RefreshToken); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	c := *sess
	return &c, nil
}

func (s *Supabase) toSession(ts types.Session) *Session {
	expiresAt := time.Time{}
	switch {
	case ts.ExpiresAt > 0:
		expiresAt = time.Unix(ts.ExpiresAt, 0)
	case ts.ExpiresIn > 0:
		expiresAt = s.now().Add(time.Duration(ts.ExpiresIn) * time.Second)
	}

	return &Session{
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         MapUser(ts.User.ID.String(), ts.User.Email, ts.User.UserMetadata),
	}
}

func (s *Supabase) clear(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.items.RemoveItem(ctx, RefreshTokenItem); err != nil {
		s.log.Error("failed to remove refresh token", slog.String("op", "identity.clear"), sl.Err(err))
	}
}

func (s *Supabase) emit(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
