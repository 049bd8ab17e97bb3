package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/identity"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/localstore"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/synchronizer"
)

func executeCLI(t *testing.T, home, apiURL string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWith(t, home, apiURL, nil, args...)
}

// executeCLIWith подставляет провайдера идентификации вместо Supabase.
func executeCLIWith(t *testing.T, home, apiURL string, provider synchronizer.Provider, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	v := viper.New()
	if apiURL != "" {
		v.Set("api_url", apiURL)
	}

	wire := wireApp
	if provider != nil {
		wire = func(v *viper.Viper, out, errOut io.Writer) (*app, error) {
			a, err := wireApp(v, out, errOut)
			if err != nil {
				return nil, err
			}
			a.provider = provider
			return a, nil
		}
	}

	root := newRootCmdWith(v, wire)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func storagePath(home string) string {
	return filepath.Join(home, ".config", configDir, "storage.toml")
}

// signIn сохраняет сессию так же, как это делает вход через провайдера.
func signIn(t *testing.T, home string) {
	t.Helper()
	signInWithToken(t, home, "tok")
}

func signInWithToken(t *testing.T, home, token string) {
	t.Helper()
	items, err := localstore.Open(storagePath(home))
	require.NoError(t, err)

	store := session.New(items, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	store.Login(token, &session.User{
		ID:         "u-1",
		Email:      "owner@brand.io",
		Name:       "Brand Owner",
		Role:       session.RoleBusiness,
		BusinessID: "biz-1",
	}, "")
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		switch {
		case r.URL.Path == "/api/business/credits/balance":
			_, _ = w.Write([]byte(`{"balance":320}`))
		case r.URL.Path == "/api/campaigns" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"campaigns":[{"id":"c-1","name":"Spring","type":"paid","status":"active","platforms":["instagram","tiktok"]}],"total":1}`))
		case r.URL.Path == "/api/campaigns/c-1/status" && r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"Campaign has ended"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWhoamiWithoutSession(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", stdout)
}

func TestWhoamiRehydratesSession(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)

	stdout, _, err := executeCLI(t, home, "", "whoami", "--json")
	require.NoError(t, err)

	var got whoami
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.True(t, got.Authenticated)
	assert.Equal(t, "owner@brand.io", got.User.Email)
	assert.Equal(t, "biz-1", got.BusinessID)
}

func TestLoginRequiresProvider(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "", "login", "--email", "owner@brand.io", "--password", "x")
	require.ErrorIs(t, err, errProviderNotConfigured)
}

func TestLogoutWithoutProviderClearsLocalSession(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)

	stdout, _, err := executeCLI(t, home, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out locally\n", stdout)

	stdout, _, err = executeCLI(t, home, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", stdout)
}

func TestCreditsBalance(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)
	api := newAPI(t)

	stdout, _, err := executeCLI(t, home, api.URL, "credits", "balance")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Credits: 320")
}

func TestCreditsBalanceWithoutSessionIsDisabled(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "", "credits", "balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access token")
}

// staticProvider отдаёт заранее заданную сессию, как Supabase после обмена refresh-токена.
type staticProvider struct {
	current *identity.Session
	calls   atomic.Int32
}

func (p *staticProvider) CurrentSession(context.Context) (*identity.Session, error) {
	p.calls.Add(1)
	return p.current, nil
}

func (p *staticProvider) SignIn(context.Context, string, string) (*identity.Session, error) {
	return nil, errors.New("not supported")
}

func (p *staticProvider) SignOut(context.Context) error { return nil }

func (p *staticProvider) Subscribe(func(identity.Event)) func() { return func() {} }

func TestCreditsBalanceRestoresExpiredSession(t *testing.T) {
	home := t.TempDir()
	signInWithToken(t, home, "expired")
	api := newAPI(t)
	provider := &staticProvider{current: &identity.Session{
		AccessToken:  "tok",
		RefreshToken: "rt-2",
		User:         identity.MapUser("u-1", "owner@brand.io", map[string]any{"business_id": "biz-1"}),
	}}

	stdout, _, err := executeCLIWith(t, home, api.URL, provider, "credits", "balance")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Credits: 320")
	assert.EqualValues(t, 1, provider.calls.Load())

	items, err := localstore.Open(storagePath(home))
	require.NoError(t, err)
	restored := session.New(items, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, restored.Rehydrate(context.Background()))
	assert.Equal(t, "tok", restored.Token())
}

func TestCampaignsClearRevokedSession(t *testing.T) {
	home := t.TempDir()
	signInWithToken(t, home, "revoked")
	api := newAPI(t)

	_, _, err := executeCLIWith(t, home, api.URL, &staticProvider{}, "campaigns", "list")
	require.ErrorIs(t, err, errNotSignedIn)

	stdout, _, err := executeCLI(t, home, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", stdout)
}

func TestCreditsPackagesSkipsProvider(t *testing.T) {
	provider := &staticProvider{}
	_, _, err := executeCLIWith(t, t.TempDir(), "", provider, "credits", "packages")
	require.NoError(t, err)
	assert.Zero(t, provider.calls.Load())
}

func TestCreditsPackages(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "", "credits", "packages")
	require.NoError(t, err)
	assert.Contains(t, stdout, "100credits")
	assert.Contains(t, stdout, "$850.00")
	assert.Contains(t, stdout, "recommended")
	assert.Contains(t, stdout, "20%")
}

func TestCreditsBuyRequiresSession(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "", "credits", "buy", "500credits")
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestCampaignsList(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)
	api := newAPI(t)

	stdout, _, err := executeCLI(t, home, api.URL, "campaigns", "list", "--status", "active")
	require.NoError(t, err)
	assert.Contains(t, stdout, "c-1")
	assert.Contains(t, stdout, "instagram,tiktok")
	assert.Contains(t, stdout, "total: 1")
}

func TestCampaignsRequireSession(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "", "campaigns", "list")
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestCampaignsStatusSurfacesServerMessage(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)
	api := newAPI(t)

	_, _, err := executeCLI(t, home, api.URL, "campaigns", "status", "c-1", "active")
	require.Error(t, err)
	assert.Equal(t, "Campaign has ended", err.Error())
}

func TestCampaignsCreateValidatesLocally(t *testing.T) {
	home := t.TempDir()
	signIn(t, home)
	api := newAPI(t)

	_, _, err := executeCLI(t, home, api.URL, "campaigns", "create", "--name", "Launch", "--type", "paid", "--platform", "instagram")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget must be greater than 0")
}

func TestConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".config", configDir)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("api_url = \"https://api.example.com\"\napp_url = \"https://app.example.com\"\n"), 0o600))

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("DASHBOARD_APP_URL", "https://staging.example.com")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "https://staging.example.com", cfg.AppURL)
	assert.Equal(t, storagePath(home), cfg.StoragePath)
	assert.Equal(t, "warn", cfg.LogLevel)
}
