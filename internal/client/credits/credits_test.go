package credits

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/query"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testOptions = query.Options{
	StaleTime: 30 * time.Second,
	Retries:   3,
	RetryBase: time.Millisecond,
	RetryMax:  2 * time.Millisecond,
}

type fakeBackend struct {
	srv      *httptest.Server
	balance  atomic.Int32
	txs      atomic.Int32
	failures atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if fb.failures.Load() > 0 {
			fb.failures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"balance service down"}`))
			return
		}
		switch r.URL.Path {
		case BalancePath:
			fb.balance.Add(1)
			_, _ = w.Write([]byte(`{"balance":1500}`))
		case TransactionsPath:
			fb.txs.Add(1)
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"rows":[{"id":"tx-1","type":"purchase","amount":500}],"total":11}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func newTestReader(fb *fakeBackend) *Reader {
	cache := query.New(newNoopLogger(), testOptions)
	r := NewReader(backend.NewClient(fb.srv.URL), cache, newNoopLogger())
	r.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestReader_Balance(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)

	b, err := r.Balance(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 1500, b.Credits)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), b.LastUpdated)

	_, err = r.Balance(context.Background(), "tok")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fb.balance.Load(), "second read served from cache")
}

func TestReader_BalanceDisabledWithoutToken(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)

	_, err := r.Balance(context.Background(), "")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.EqualValues(t, 0, fb.balance.Load())

	var got error
	r.Watch(context.Background(), "", func(_ Balance, err error) { got = err })
	assert.ErrorIs(t, got, ErrDisabled)
	assert.Equal(t, ErrDisabled.Error(), ErrorMessage(got))
}

func TestReader_BalanceRetriesAndNormalizesErrors(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)

	fb.failures.Store(2)
	b, err := r.Balance(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 1500, b.Credits)

	fb.failures.Store(10)
	r.InvalidateAfterPurchase()
	_, err = r.Balance(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, backend.StatusOf(err))
	assert.Equal(t, "balance service down", ErrorMessage(err))
}

func TestReader_Transactions(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)

	page, err := r.Transactions(context.Background(), "tok", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "tx-1", page.Transactions[0].ID)

	_, err = r.Transactions(context.Background(), "", 1, 10)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestReader_InvalidateAfterPurchase(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)
	ctx := context.Background()

	_, err := r.Balance(ctx, "tok")
	require.NoError(t, err)
	_, err = r.Transactions(ctx, "tok", 2, 10)
	require.NoError(t, err)

	r.InvalidateAfterPurchase()

	_, err = r.Balance(ctx, "tok")
	require.NoError(t, err)
	_, err = r.Transactions(ctx, "tok", 2, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 2, fb.balance.Load())
	assert.EqualValues(t, 2, fb.txs.Load())
}

func TestReader_WatchRefetchesOnInvalidate(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestReader(fb)

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Balance, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Watch(ctx, "tok", func(b Balance, err error) {
			assert.NoError(t, err)
			results <- b
		})
	}()

	<-results
	r.InvalidateAfterPurchase()
	select {
	case b := <-results:
		assert.Equal(t, 1500, b.Credits)
	case <-time.After(time.Second):
		t.Fatal("balance was not refetched after invalidation")
	}
	assert.EqualValues(t, 2, fb.balance.Load())

	cancel()
	<-done
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "credits/balance/"+query.Scope("tok"), BalanceKey("tok").String())
	assert.Equal(t, "credits/transactions/"+query.Scope("tok")+"/1/20", TransactionsKey("tok", 1, 20).String())
	assert.NotEqual(t, BalanceKey("tok"), BalanceKey("other"))
	assert.NotContains(t, BalanceKey("tok").String(), "tok")
}

func TestReader_BalanceFailureDoesNotExposeToken(t *testing.T) {
	const secret = "eyJSECRET.ACCESS.TOKEN"

	fb := newFakeBackend(t)
	var logs bytes.Buffer
	debug := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewReader(backend.NewClient(fb.srv.URL), query.New(debug, testOptions), debug)

	_, err := r.Balance(context.Background(), secret)
	require.Error(t, err)

	assert.NotContains(t, err.Error(), secret)
	assert.Contains(t, logs.String(), "query attempt failed")
	assert.NotContains(t, logs.String(), secret)
}
