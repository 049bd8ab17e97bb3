package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/campaigns"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/checkout"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/credits"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/identity"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/localstore"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/navigate"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/query"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/synchronizer"
	"github.com/magabrotheeeer/campaign-dashboard/internal/ratelimit"
)

var (
	errProviderNotConfigured = errors.New("identity provider is not configured: set supabase_url and supabase_anon_key")
	errNotSignedIn           = errors.New("not signed in: run `dashboard login` first")
)

// app — граф зависимостей клиента, собирается перед каждой командой.
type app struct {
	cfg       Config
	log       *slog.Logger
	items     *localstore.Store
	store     *session.Store
	provider  synchronizer.Provider
	nav       *navigate.Navigator
	api       *backend.Client
	credits   *credits.Reader
	checkout  *checkout.Initiator
	campaigns *campaigns.Mutator
}

func wireApp(v *viper.Viper, out, errOut io.Writer) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	log := setupLogger(cfg.LogLevel, errOut)

	items, err := localstore.Open(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}

	nav, err := navigate.New(cfg.AppURL, out)
	if err != nil {
		return nil, fmt.Errorf("wire navigator: %w", err)
	}

	a := &app{cfg: cfg, log: log, items: items, nav: nav}

	var refresher session.Refresher = session.RefresherFunc(func(context.Context, string) (string, *session.User, error) {
		return "", nil, errProviderNotConfigured
	})
	if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
		provider, err := identity.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey, items, log)
		if err != nil {
			return nil, fmt.Errorf("wire identity provider: %w", err)
		}
		a.provider = provider
		refresher = provider
	}

	a.store = session.New(items, refresher, log)
	a.api = backend.NewClient(cfg.APIURL)

	cache := query.New(log, query.DefaultOptions)
	a.credits = credits.NewReader(a.api, cache, log)
	a.checkout = checkout.NewInitiator(a.api, nav, a.credits, log).
		WithLimiter(ratelimit.NewPersistent(ratelimit.CheckoutPolicy, items, checkout.LimiterSnapshot))
	a.campaigns = campaigns.NewMutator(a.api, cache, a.store, log)

	return a, nil
}

// withSync запускает актор синхронизации на время fn.
func (a *app) withSync(ctx context.Context, fn func(ctx context.Context, s *synchronizer.Synchronizer) error) error {
	if a.provider == nil {
		return errProviderNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	s := synchronizer.New(a.provider, a.store, a.nav, a.log)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	err := fn(ctx, s)
	cancel()
	if runErr := <-done; runErr != nil && err == nil {
		err = runErr
	}
	return err
}

// mountSession сверяет восстановленную сессию с провайдером перед командами,
// которым нужен действующий access-токен: просроченный токен заменяется
// обновлённым, отозванная сессия очищается.
func (a *app) mountSession(ctx context.Context) error {
	if a.provider == nil {
		return nil
	}
	return a.withSync(ctx, func(ctx context.Context, s *synchronizer.Synchronizer) error {
		return s.Settled(ctx)
	})
}

func (a *app) requireSession() (session.State, error) {
	st := a.store.State()
	if !st.Authenticated {
		return st, errNotSignedIn
	}
	return st, nil
}
