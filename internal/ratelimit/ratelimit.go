// Package ratelimit реализует лимитер с фиксированным окном: на каждого актора
// хранится счётчик запросов и момент сброса окна.
package ratelimit

import (
	"context"
	"time"
)

// Decision — результат проверки лимита для одного запроса.
type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Limiter проверяет, может ли актор выполнить ещё один запрос в текущем окне.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy задаёт размер окна и потолок запросов в нём.
type Policy struct {
	Window time.Duration
	Max    int
}

// CheckoutPolicy — 5 запросов на создание checkout-сессии за 60 секунд.
var CheckoutPolicy = Policy{Window: time.Minute, Max: 5}

func (p Policy) decide(count int, resetAt time.Time) Decision {
	remaining := p.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= p.Max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
