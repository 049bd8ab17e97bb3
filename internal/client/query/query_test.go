package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var fastOptions = Options{
	StaleTime: 30 * time.Second,
	Retries:   3,
	RetryBase: time.Millisecond,
	RetryMax:  4 * time.Millisecond,
}

func newTestClient() (*Client, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(newNoopLogger(), fastOptions).WithClock(clock.Now), clock
}

func counter(value int) (Fetcher[int], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (int, error) {
		calls.Add(1)
		return value, nil
	}, &calls
}

func TestKey(t *testing.T) {
	k := Key{"credits", "balance", "tok"}
	assert.Equal(t, "credits/balance/tok", k.String())
	assert.True(t, k.HasPrefix(Key{"credits"}))
	assert.True(t, k.HasPrefix(Key{"credits", "balance"}))
	assert.True(t, k.HasPrefix(Key{}))
	assert.False(t, k.HasPrefix(Key{"credits", "transactions"}))
	assert.False(t, Key{"credits"}.HasPrefix(k))
}

func TestScope(t *testing.T) {
	a := Scope("eyJSECRET.ACCESS.TOKEN")
	assert.Equal(t, a, Scope("eyJSECRET.ACCESS.TOKEN"))
	assert.NotEqual(t, a, Scope("another-token"))
	assert.NotContains(t, a, "SECRET")
	assert.Len(t, a, len("s:")+16)
}

func TestFetch_FreshnessWindow(t *testing.T) {
	c, clock := newTestClient()
	fetch, calls := counter(42)
	key := Key{"credits", "balance", "tok"}

	v, err := Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	clock.Advance(29 * time.Second)
	_, err = Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load(), "still fresh")

	clock.Advance(time.Second)
	_, err = Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "stale after 30s")
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	c, _ := newTestClient()
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 0, errors.New("temporary")
		}
		return 7, nil
	}

	v, err := Fetch(context.Background(), c, Key{"k"}, fetch)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_GivesUpAfterThreeRetries(t *testing.T) {
	c, _ := newTestClient()
	var calls atomic.Int32
	boom := errors.New("server down")
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}

	_, err := Fetch(context.Background(), c, Key{"k"}, fetch)
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 4, calls.Load(), "one attempt plus three retries")

	_, ok := GetData[int](c, Key{"k"})
	assert.False(t, ok, "failures are not cached")
}

func TestFetch_CanceledContextStopsRetries(t *testing.T) {
	c, _ := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		cancel()
		return 0, context.Canceled
	}

	_, err := Fetch(ctx, c, Key{"k"}, fetch)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInvalidate_Prefix(t *testing.T) {
	c, _ := newTestClient()
	ctx := context.Background()
	fetch, calls := counter(1)

	balance := Key{"credits", "balance", "tok"}
	txs := Key{"credits", "transactions", "tok", "1", "20"}
	campaigns := Key{"campaigns", "list"}

	for _, k := range []Key{balance, txs, campaigns} {
		_, err := Fetch(ctx, c, k, fetch)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, calls.Load())

	assert.Equal(t, 1, c.Invalidate(Key{"credits", "balance"}))
	assert.True(t, c.IsStale(balance))
	assert.False(t, c.IsStale(txs))
	assert.False(t, c.IsStale(campaigns))

	_, err := Fetch(ctx, c, balance, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())

	_, err = Fetch(ctx, c, campaigns, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestRefetch_DoesNotOverwriteNewerWrite(t *testing.T) {
	c, _ := newTestClient()
	key := Key{"campaigns", "detail", "c-1"}
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := Refetch(context.Background(), c, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return "server-old", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "server-old", v)
	}()

	<-started
	c.SetData(key, "optimistic")
	close(release)
	<-done

	v, ok := GetData[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "optimistic", v)
}

func TestOptimistic_RollbackRestoresSnapshot(t *testing.T) {
	c, _ := newTestClient()
	key := Key{"campaigns", "detail", "c-1"}
	c.SetData(key, "draft")

	tx := c.Begin(key)
	tx.Write("active")
	v, _ := GetData[string](c, key)
	assert.Equal(t, "active", v)

	tx.Rollback()
	v, ok := GetData[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "draft", v)

	prev, existed := tx.Previous()
	assert.True(t, existed)
	assert.Equal(t, "draft", prev)
}

func TestOptimistic_RollbackKeepsSnapshotFreshness(t *testing.T) {
	c, clock := newTestClient()
	key := Key{"campaigns", "detail", "c-3"}
	c.SetData(key, "draft")
	c.Invalidate(Key{"campaigns"})
	require.True(t, c.IsStale(key))

	tx := c.Begin(key)
	tx.Write("active")
	assert.False(t, c.IsStale(key))

	tx.Rollback()
	assert.True(t, c.IsStale(key), "restored entry keeps its stale flag")

	c.SetData(key, "paused")
	tx = c.Begin(key)
	clock.Advance(20 * time.Second)
	tx.Write("active")
	tx.Rollback()
	clock.Advance(15 * time.Second)
	assert.True(t, c.IsStale(key), "restored entry keeps its original timestamp")
}

func TestOptimistic_RollbackRemovesAbsentKey(t *testing.T) {
	c, _ := newTestClient()
	key := Key{"campaigns", "detail", "c-2"}

	tx := c.Begin(key)
	tx.Write("active")
	tx.Rollback()

	_, ok := GetData[string](c, key)
	assert.False(t, ok)
}

func TestGetData_WrongType(t *testing.T) {
	c, _ := newTestClient()
	c.SetData(Key{"k"}, "text")
	_, ok := GetData[int](c, Key{"k"})
	assert.False(t, ok)
}

func TestWatch_InvalidateAndFocus(t *testing.T) {
	c, clock := newTestClient()
	key := Key{"credits", "balance", "tok"}
	fetch, calls := counter(10)

	results := make(chan int, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, c, key, time.Hour, fetch, func(v int, err error) {
			assert.NoError(t, err)
			results <- v
		})
	}()

	<-results
	assert.EqualValues(t, 1, calls.Load())

	c.Focus()
	<-results
	assert.EqualValues(t, 1, calls.Load(), "focus with fresh data uses the cache")

	clock.Advance(31 * time.Second)
	c.Focus()
	<-results
	assert.EqualValues(t, 2, calls.Load(), "focus refetches stale data")

	c.Invalidate(Key{"credits"})
	<-results
	assert.EqualValues(t, 3, calls.Load())

	cancel()
	<-done
}

func TestWatch_Interval(t *testing.T) {
	c, _ := newTestClient()
	fetch, calls := counter(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan int, 16)
	go Watch(ctx, c, Key{"k"}, 10*time.Millisecond, fetch, func(v int, _ error) { results <- v })

	for range 3 {
		select {
		case <-results:
		case <-time.After(time.Second):
			t.Fatal("watch did not refetch on interval")
		}
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
