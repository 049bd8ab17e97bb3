package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/campaign-dashboard/internal/models"
	"github.com/magabrotheeeer/campaign-dashboard/internal/storage"
)

// GetProfileByUserID возвращает профиль бизнеса пользователя.
func (s *Storage) GetProfileByUserID(ctx context.Context, userID string) (*models.BusinessProfile, error) {
	const op = "storage.GetProfileByUserID"

	query := `SELECT id, business_id, user_id, email, business_name, business_type, phone, created_at
			  FROM business_profiles
			  WHERE user_id = $1`
	p := &models.BusinessProfile{}
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &p.BusinessID, &p.UserID, &p.Email, &p.BusinessName, &p.BusinessType, &p.Phone, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetSettings возвращает сохранённый JSON настроек вида kind.
// Если настроек нет, возвращает storage.ErrNotFound.
func (s *Storage) GetSettings(ctx context.Context, userID string, kind models.SettingsKind) ([]byte, error) {
	const op = "storage.GetSettings"

	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM profile_settings WHERE user_id = $1 AND kind = $2`,
		userID, string(kind),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payload, nil
}

// UpsertSettings сохраняет JSON настроек вида kind.
func (s *Storage) UpsertSettings(ctx context.Context, userID string, kind models.SettingsKind, payload []byte) error {
	const op = "storage.UpsertSettings"

	query := `INSERT INTO profile_settings (user_id, kind, payload, updated_at)
			  VALUES ($1, $2, $3, now())
			  ON CONFLICT (user_id, kind)
			  DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, userID, string(kind), payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
