package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

const (
	// StorageKey — ключ снимка сессии.
	StorageKey = "auth-storage"
	// TokenItem — элемент с access-токеном.
	TokenItem = "auth_token"
	// BusinessItem — элемент с идентификатором бизнеса.
	BusinessItem = "business_id"
)

// ErrIncompleteRefresh — ответ обновления без токена или пользователя.
var ErrIncompleteRefresh = errors.New("incomplete refresh response")

// Storage — долговременное локальное хранилище.
type Storage interface {
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	SaveSnapshot(ctx context.Context, key string, v any) error
	LoadSnapshot(ctx context.Context, key string, v any) (bool, error)
}

// Refresher обменивает текущий токен на новый.
type Refresher interface {
	Refresh(ctx context.Context, token string) (string, *User, error)
}

// RefresherFunc позволяет передать функцию как Refresher.
type RefresherFunc func(ctx context.Context, token string) (string, *User, error)

// Refresh вызывает f.
func (f RefresherFunc) Refresh(ctx context.Context, token string) (string, *User, error) {
	return f(ctx, token)
}

// Store владеет состоянием сессии.
type Store struct {
	writeMu   sync.Mutex
	mu        sync.RWMutex
	state     State
	storage   Storage
	refresher Refresher
	log       *slog.Logger

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New создаёт пустое хранилище. Восстановление с диска выполняет Rehydrate.
func New(storage Storage, refresher Refresher, log *slog.Logger) *Store {
	return &Store{
		storage:   storage,
		refresher: refresher,
		log:       log,
		subs:      make(map[int]func(State)),
	}
}

// State возвращает копию текущего состояния.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token возвращает текущий access-токен.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Subscribe регистрирует fn, которая вызывается после каждого изменения.
// Возвращает функцию отписки.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// apply выполняет переход атомарно: вычисляет новое состояние,
// сохраняет его и уведомляет подписчиков. Переходы сериализуются writeMu.
func (s *Store) apply(ctx context.Context, reduce func(State) State, persist func(ctx context.Context, next State)) State {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := reduce(s.state.clone()).normalize()
	s.state = next
	s.mu.Unlock()

	if persist != nil {
		persist(ctx, next)
	}
	s.saveSnapshot(ctx, next)
	s.notify(next)
	return next
}

func (s *Store) saveSnapshot(ctx context.Context, st State) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SaveSnapshot(ctx, StorageKey, toSnapshot(st)); err != nil {
		s.log.Error("failed to persist session snapshot", sl.Err(err))
	}
}

func (s *Store) setItem(ctx context.Context, key, value string) {
	if s.storage == nil {
		return
	}
	var err error
	if value == "" {
		err = s.storage.RemoveItem(ctx, key)
	} else {
		err = s.storage.SetItem(ctx, key, value)
	}
	if err != nil {
		s.log.Error("failed to persist session item", slog.String("key", key), sl.Err(err))
	}
}

func (s *Store) notify(st State) {
	s.subsMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(st.clone())
	}
}

// SetUser заменяет пользователя.
func (s *Store) SetUser(user *User) {
	u := user.clone()
	s.apply(context.Background(), func(st State) State {
		st.User = u
		return st
	}, nil)
}

// SetToken заменяет токен и сохраняет его в элементе auth_token; пустой токен удаляет элемент.
func (s *Store) SetToken(token string) {
	s.apply(context.Background(), func(st State) State {
		st.Token = token
		return st
	}, func(ctx context.Context, _ State) {
		s.setItem(ctx, TokenItem, token)
	})
}

// Login устанавливает токен, пользователя и бизнес. Пустой businessID
// берётся из пользователя.
func (s *Store) Login(token string, user *User, businessID string) {
	u := user.clone()
	if businessID == "" && u != nil {
		businessID = u.BusinessID
	}
	s.apply(context.Background(), func(st State) State {
		st.Token = token
		st.User = u
		st.BusinessID = businessID
		st.Loading = false
		return st
	}, func(ctx context.Context, _ State) {
		s.setItem(ctx, TokenItem, token)
		s.setItem(ctx, BusinessItem, businessID)
	})
}

// Logout очищает сессию и удаляет сохранённые токен и бизнес.
func (s *Store) Logout() {
	s.apply(context.Background(), func(st State) State {
		st.User = nil
		st.Token = ""
		st.BusinessID = ""
		return st
	}, func(ctx context.Context, _ State) {
		s.setItem(ctx, TokenItem, "")
		s.setItem(ctx, BusinessItem, "")
	})
}

// UserPatch — частичное обновление пользователя; пустые поля не меняются.
type UserPatch struct {
	Email      string
	Name       string
	Role       Role
	BusinessID string
}

// UpdateUser применяет patch к текущему пользователю. Без пользователя ничего не делает.
func (s *Store) UpdateUser(patch UserPatch) {
	if s.State().User == nil {
		return
	}
	s.apply(context.Background(), func(st State) State {
		if st.User == nil {
			return st
		}
		if patch.Email != "" {
			st.User.Email = patch.Email
		}
		if patch.Name != "" {
			st.User.Name = patch.Name
		}
		if patch.Role != "" {
			st.User.Role = patch.Role
		}
		if patch.BusinessID != "" {
			st.User.BusinessID = patch.BusinessID
		}
		return st
	}, nil)
}

func (s *Store) setLoading(loading bool) {
	s.apply(context.Background(), func(st State) State {
		st.Loading = loading
		return st
	}, nil)
}

// RefreshToken обменивает текущий токен через Refresher. Без токена сразу возвращает nil.
// Любая ошибка приводит к Logout; Loading сбрасывается в конце в любом случае.
func (s *Store) RefreshToken(ctx context.Context) error {
	const op = "session.RefreshToken"

	token := s.Token()
	if token == "" {
		return nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	newToken, user, err := s.refresher.Refresh(ctx, token)
	if err == nil && (newToken == "" || user == nil) {
		err = ErrIncompleteRefresh
	}
	if err != nil {
		s.log.Warn("token refresh failed, signing out", sl.Op(op), sl.Err(err))
		s.Logout()
		return fmt.Errorf("%s: %w", op, err)
	}

	s.Login(newToken, user, "")
	s.log.Debug("token refreshed", sl.Op(op))
	return nil
}

// Rehydrate восстанавливает сессию из сохранённого снимка.
func (s *Store) Rehydrate(ctx context.Context) error {
	const op = "session.Rehydrate"
	if s.storage == nil {
		return nil
	}

	var snap snapshot
	ok, err := s.storage.LoadSnapshot(ctx, StorageKey, &snap)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil
	}

	restored := snap.toState()
	s.writeMu.Lock()
	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(restored)
	return nil
}
