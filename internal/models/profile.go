// Package models содержит доменные структуры профиля бизнеса и его настроек.
package models

import "time"

// BusinessProfile — профиль бизнеса, привязанный к пользователю.
type BusinessProfile struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"businessId"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	BusinessName string    `json:"businessName"`
	BusinessType string    `json:"businessType"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountInfo — сведения об учётной записи из токена и профиля.
type AccountInfo struct {
	UserID        string     `json:"userId"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	BusinessID    string     `json:"businessId,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}
