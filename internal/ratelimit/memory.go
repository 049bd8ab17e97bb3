package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Memory хранит окна в памяти процесса. Истёкшие окна удаляются через Sweep,
// поэтому размер карты ограничен числом активных акторов.
type Memory struct {
	policy  Policy
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory создаёт лимитер в памяти с заданной политикой.
func NewMemory(policy Policy) *Memory {
	return &Memory{
		policy:  policy,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// WithClock подменяет источник времени.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Allow увеличивает счётчик актора. Если текущее время больше момента сброса,
// окно начинается заново со счётчиком 1.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(m.policy.Window)}
		m.entries[key] = e
		return m.policy.decide(e.count, e.resetAt), nil
	}
	e.count++
	return m.policy.decide(e.count, e.resetAt), nil
}

// Sweep удаляет окна, истёкшие к моменту now, и возвращает число удалённых записей.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len возвращает число отслеживаемых акторов.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Run периодически вызывает Sweep, пока не отменён ctx.
func (m *Memory) Run(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(m.now()); removed > 0 {
				log.Debug("rate limit windows evicted", slog.Int("removed", removed))
			}
		}
	}
}
