package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SnapshotStore — хранилище JSON-снимков, переживающее перезапуск процесса.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, v any) error
	LoadSnapshot(ctx context.Context, key string, v any) (bool, error)
}

type window struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Persistent — лимитер с теми же окнами, что и Memory, но окна хранятся в
// снимке: короткоживущие процессы (команды CLI) делят один счётчик.
type Persistent struct {
	policy Policy
	store  SnapshotStore
	key    string
	now    func() time.Time
	mu     sync.Mutex
}

// NewPersistent создаёт лимитер, хранящий окна под ключом снимка key.
func NewPersistent(policy Policy, store SnapshotStore, key string) *Persistent {
	return &Persistent{policy: policy, store: store, key: key, now: time.Now}
}

// WithClock подменяет источник времени.
func (p *Persistent) WithClock(now func() time.Time) *Persistent {
	p.now = now
	return p
}

// Allow увеличивает счётчик актора и сохраняет окна. Истёкшие окна других
// акторов при этом отбрасываются.
func (p *Persistent) Allow(ctx context.Context, key string) (Decision, error) {
	const op = "ratelimit.Persistent.Allow"

	p.mu.Lock()
	defer p.mu.Unlock()

	windows := make(map[string]window)
	if _, err := p.store.LoadSnapshot(ctx, p.key, &windows); err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	now := p.now()
	for k, w := range windows {
		if now.After(w.ResetAt) {
			delete(windows, k)
		}
	}

	w, ok := windows[key]
	if !ok {
		w = window{ResetAt: now.Add(p.policy.Window)}
	}
	w.Count++
	windows[key] = w

	if err := p.store.SaveSnapshot(ctx, p.key, windows); err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	return p.policy.decide(w.Count, w.ResetAt), nil
}
