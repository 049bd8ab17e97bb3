// Package synchronizer держит хранилище сессии в согласии с провайдером
// идентификации. Все записи в хранилище от событий провайдера, таймера
// обновления, входа и выхода выполняет одна горутина-актор, поэтому
// обновление токена не может перезаписать уже выполненный выход.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/identity"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

const (
	RefreshInterval = 15 * time.Minute
	LoginPath       = "/login"
)

// ErrStopped — актор уже завершил работу.
var ErrStopped = errors.New("synchronizer stopped")

// Phase — фаза жизненного цикла сессии.
type Phase string

const (
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseRefreshing     Phase = "refreshing"
)

// Provider — провайдер идентификации.
type Provider interface {
	CurrentSession(ctx context.Context) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(identity.Event)) (unsubscribe func())
}

// Store — хранилище сессии.
type Store interface {
	State() session.State
	Login(token string, user *session.User, businessID string)
	Logout()
	RefreshToken(ctx context.Context) error
}

// Navigator выполняет переход после выхода.
type Navigator interface {
	Navigate(target string) error
}

type command struct {
	ctx   context.Context
	fn    func(ctx context.Context) error
	reply chan error
}

// Synchronizer — актор синхронизации сессии.
type Synchronizer struct {
	provider Provider
	store    Store
	nav      Navigator
	log      *slog.Logger

	interval  time.Duration
	newTicker func(d time.Duration) (<-chan time.Time, func())

	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	phaseMu sync.RWMutex
	phase   Phase

	pendingMu sync.Mutex
	pending   []identity.Event
	signal    chan struct{}
}

// New создаёт Synchronizer. Актор запускается методом Run.
func New(provider Provider, store Store, nav Navigator, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		provider:  provider,
		store:     store,
		nav:       nav,
		log:       log,
		interval:  RefreshInterval,
		newTicker: realTicker,
		commands:  make(chan command),
		done:      make(chan struct{}),
		phase:     PhaseAnonymous,
		signal:    make(chan struct{}, 1),
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Phase возвращает текущую фазу.
func (s *Synchronizer) Phase() Phase {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.phase
}

func (s *Synchronizer) setPhase(p Phase) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	s.phase = p
}

func (s *Synchronizer) settlePhase() {
	if s.store.State().Authenticated {
		s.setPhase(PhaseAuthenticated)
		return
	}
	s.setPhase(PhaseAnonymous)
}

// Run загружает текущую сессию провайдера, подписывается на его события и
// обслуживает команды до отмены ctx. При выходе отписывается и
// останавливает таймер обновления.
func (s *Synchronizer) Run(ctx context.Context) error {
	const op = "synchronizer.Run"

	log := s.log.With(slog.String("op", op))
	defer s.stopOnce.Do(func() { close(s.done) })

	unsubscribe := s.provider.Subscribe(s.enqueue)
	defer unsubscribe()

	s.mount(ctx, log)
	s.drain()
	s.settlePhase()

	t := &refreshTimer{newTicker: s.newTicker, interval: s.interval}
	defer t.stop()
	t.sync(s.store.State())

	for {
		select {
		case <-ctx.Done():
			log.Debug("synchronizer stopped")
			return nil
		case cmd := <-s.commands:
			cmd.reply <- cmd.fn(cmd.ctx)
		case <-s.signal:
		case <-t.C():
			s.refresh(ctx)
		}
		s.drain()
		s.settlePhase()
		t.sync(s.store.State())
	}
}

// mount сверяет восстановленный снимок с провайдером. Если у провайдера
// сессии нет, снимок считается устаревшим и очищается; при ошибке провайдера
// снимок остаётся как есть.
func (s *Synchronizer) mount(ctx context.Context, log *slog.Logger) {
	s.setPhase(PhaseAuthenticating)
	sess, err := s.provider.CurrentSession(ctx)
	switch {
	case err != nil:
		log.Warn("failed to load provider session", sl.Err(err))
	case sess != nil:
		s.login(sess)
	case s.store.State().Authenticated:
		log.Info("stored session has no provider session, signing out locally")
		s.store.Logout()
	}
}

// Settled ждёт, пока актор загрузит сессию провайдера и обработает
// уже поступившие события.
func (s *Synchronizer) Settled(ctx context.Context) error {
	return s.do(ctx, func(context.Context) error { return nil })
}

// SignIn выполняет вход через провайдера и записывает сессию в хранилище.
func (s *Synchronizer) SignIn(ctx context.Context, email, password string) error {
	return s.do(ctx, func(ctx context.Context) error {
		const op = "synchronizer.SignIn"

		s.setPhase(PhaseAuthenticating)
		sess, err := s.provider.SignIn(ctx, email, password)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.login(sess)
		return nil
	})
}

// SignOut завершает сессию у провайдера, затем очищает локальное состояние
// и переходит на страницу входа.
func (s *Synchronizer) SignOut(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		const op = "synchronizer.SignOut"

		if err := s.provider.SignOut(ctx); err != nil {
			s.log.Warn("provider sign-out failed", slog.String("op", op), sl.Err(err))
		}
		s.store.Logout()

		if err := s.nav.Navigate(LoginPath); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// Refresh обновляет токен вне расписания.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.refresh(ctx)
	})
}

func (s *Synchronizer) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{ctx: ctx, fn: fn, reply: make(chan error, 1)}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-cmd.reply
}

func (s *Synchronizer) refresh(ctx context.Context) error {
	const op = "synchronizer.refresh"

	if !s.store.State().Authenticated {
		return nil
	}
	s.setPhase(PhaseRefreshing)
	if err := s.store.RefreshToken(ctx); err != nil {
		s.log.Warn("token refresh failed, session cleared", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("token refreshed", slog.String("op", op))
	return nil
}

func (s *Synchronizer) login(sess *identity.Session) {
	user := sess.User
	s.store.Login(sess.AccessToken, &user, user.BusinessID)
}

// enqueue вызывается провайдером, в том числе изнутри команд актора,
// поэтому не блокируется.
func (s *Synchronizer) enqueue(ev identity.Event) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, ev)
	s.pendingMu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) drain() {
	s.pendingMu.Lock()
	events := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	for _, ev := range events {
		if ev.Session != nil {
			s.login(ev.Session)
			continue
		}
		s.store.Logout()
	}
}

// refreshTimer существует только пока сессия аутентифицирована и
// пересоздаётся при смене токена.
type refreshTimer struct {
	newTicker func(d time.Duration) (<-chan time.Time, func())
	interval  time.Duration

	ch     <-chan time.Time
	cancel func()
	token  string
}

func (t *refreshTimer) C() <-chan time.Time {
	return t.ch
}

func (t *refreshTimer) sync(st session.State) {
	if !st.Authenticated {
		t.stop()
		return
	}
	if t.ch != nil && t.token == st.Token {
		return
	}
	t.stop()
	t.ch, t.cancel = t.newTicker(t.interval)
	t.token = st.Token
}

func (t *refreshTimer) stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.ch, t.cancel, t.token = nil, nil, ""
}
