// Package metrics содержит prometheus-метрики dashboard-api.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — набор счётчиков API. Нулевой указатель безопасен: все методы становятся no-op.
type Metrics struct {
	checkoutCreated  *prometheus.CounterVec
	checkoutRejected *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	settingsUpdated  *prometheus.CounterVec
}

// New регистрирует метрики в переданном регистраторе.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkoutCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "checkout",
			Name:      "sessions_created_total",
			Help:      "Checkout sessions created, by credit package.",
		}, []string{"package"}),
		checkoutRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "checkout",
			Name:      "requests_rejected_total",
			Help:      "Checkout session requests rejected, by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
		settingsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "profile",
			Name:      "settings_updated_total",
			Help:      "Profile settings updates, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.checkoutCreated, m.checkoutRejected, m.rateLimited, m.settingsUpdated)
	return m
}

// CheckoutCreated увеличивает счётчик созданных сессий.
func (m *Metrics) CheckoutCreated(packageID string) {
	if m == nil {
		return
	}
	m.checkoutCreated.WithLabelValues(packageID).Inc()
}

// CheckoutRejected увеличивает счётчик отклонённых запросов.
func (m *Metrics) CheckoutRejected(reason string) {
	if m == nil {
		return
	}
	m.checkoutRejected.WithLabelValues(reason).Inc()
}

// RateLimited увеличивает счётчик срабатываний лимитера.
func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}

// SettingsUpdated увеличивает счётчик обновлений настроек профиля.
func (m *Metrics) SettingsUpdated(kind string) {
	if m == nil {
		return
	}
	m.settingsUpdated.WithLabelValues(kind).Inc()
}
