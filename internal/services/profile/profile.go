// Package profile содержит бизнес-логику профиля бизнеса и его настроек:
// значения по умолчанию, слияние частичных обновлений и кеширование.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/jwt"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
	"github.com/magabrotheeeer/campaign-dashboard/internal/metrics"
	"github.com/magabrotheeeer/campaign-dashboard/internal/models"
	"github.com/magabrotheeeer/campaign-dashboard/internal/storage"
)

// ErrProfileNotFound возвращается, если у пользователя нет профиля бизнеса.
var ErrProfileNotFound = errors.New("profile not found")

// ErrInvalidTimezone возвращается для неизвестного часового пояса.
var ErrInvalidTimezone = errors.New("invalid timezone")

const cacheTTL = 10 * time.Minute

// Repository определяет методы хранилища профилей.
type Repository interface {
	GetProfileByUserID(ctx context.Context, userID string) (*models.BusinessProfile, error)
	GetSettings(ctx context.Context, userID string, kind models.SettingsKind) ([]byte, error)
	UpsertSettings(ctx context.Context, userID string, kind models.SettingsKind, payload []byte) error
}

// Cache описывает JSON-кеш.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service реализует чтение профиля и чтение/обновление настроек.
type Service struct {
	repo     Repository
	cache    Cache
	metrics  *metrics.Metrics
	log      *slog.Logger
	validate *validator.Validate
}

// NewService создает сервис. cache и m могут быть nil.
func NewService(repo Repository, cache Cache, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		metrics:  m,
		log:      log,
		validate: validator.New(),
	}
}

func settingsKey(kind models.SettingsKind, userID string) string {
	return fmt.Sprintf("profile:settings:%s:%s", kind, userID)
}

// Profile возвращает профиль бизнеса пользователя.
func (s *Service) Profile(ctx context.Context, userID string) (*models.BusinessProfile, error) {
	const op = "services.profile.Profile"

	p, err := s.repo.GetProfileByUserID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Account собирает сведения об учётной записи из claims токена и профиля.
// Отсутствие профиля не считается ошибкой.
func (s *Service) Account(ctx context.Context, claims *jwt.Claims) (*models.AccountInfo, error) {
	const op = "services.profile.Account"

	info := &models.AccountInfo{
		UserID:        claims.UserID(),
		Email:         claims.Email,
		Role:          accountRole(claims),
		BusinessID:    claims.MetadataString("business_id"),
		EmailVerified: claims.EmailVerified(),
	}

	p, err := s.repo.GetProfileByUserID(ctx, claims.UserID())
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		if info.BusinessID == "" {
			info.BusinessID = p.BusinessID
		}
		createdAt := p.CreatedAt
		info.CreatedAt = &createdAt
	}
	return info, nil
}

func accountRole(claims *jwt.Claims) string {
	if role := claims.MetadataString("role"); role == "admin" || role == "business" {
		return role
	}
	return "business"
}

// DisplaySettings возвращает настройки отображения, дополненные значениями по умолчанию.
func (s *Service) DisplaySettings(ctx context.Context, userID string) (models.DisplaySettings, error) {
	const op = "services.profile.DisplaySettings"

	out := models.DefaultDisplaySettings()
	if err := s.load(ctx, userID, models.SettingsDisplay, &out); err != nil {
		return models.DisplaySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdateDisplaySettings проверяет и применяет частичное обновление настроек отображения.
func (s *Service) UpdateDisplaySettings(ctx context.Context, userID string, patch models.DisplaySettingsPatch) (models.DisplaySettings, error) {
	const op = "services.profile.UpdateDisplaySettings"

	if err := s.validate.Struct(patch); err != nil {
		return models.DisplaySettings{}, err
	}
	if patch.Timezone != nil {
		if _, err := time.LoadLocation(*patch.Timezone); err != nil {
			return models.DisplaySettings{}, ErrInvalidTimezone
		}
	}

	current, err := s.DisplaySettings(ctx, userID)
	if err != nil {
		return models.DisplaySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	updated := patch.Apply(current)
	if err := s.store(ctx, userID, models.SettingsDisplay, updated); err != nil {
		return models.DisplaySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// PrivacySettings возвращает настройки приватности, дополненные значениями по умолчанию.
func (s *Service) PrivacySettings(ctx context.Context, userID string) (models.PrivacySettings, error) {
	const op = "services.profile.PrivacySettings"

	out := models.DefaultPrivacySettings()
	if err := s.load(ctx, userID, models.SettingsPrivacy, &out); err != nil {
		return models.PrivacySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdatePrivacySettings проверяет и применяет частичное обновление настроек приватности.
func (s *Service) UpdatePrivacySettings(ctx context.Context, userID string, patch models.PrivacySettingsPatch) (models.PrivacySettings, error) {
	const op = "services.profile.UpdatePrivacySettings"

	if err := s.validate.Struct(patch); err != nil {
		return models.PrivacySettings{}, err
	}

	current, err := s.PrivacySettings(ctx, userID)
	if err != nil {
		return models.PrivacySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	updated := patch.Apply(current)
	if err := s.store(ctx, userID, models.SettingsPrivacy, updated); err != nil {
		return models.PrivacySettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// load накладывает сохранённые настройки на значения по умолчанию в dst.
// Сначала читается кеш, затем база. Ошибки кеша только логируются.
func (s *Service) load(ctx context.Context, userID string, kind models.SettingsKind, dst any) error {
	key := settingsKey(kind, userID)

	if s.cache != nil {
		var raw json.RawMessage
		found, err := s.cache.Get(ctx, key, &raw)
		if err != nil {
			s.log.Warn("settings cache read failed", slog.String("key", key), sl.Err(err))
		}
		if found {
			return json.Unmarshal(raw, dst)
		}
	}

	payload, err := s.repo.GetSettings(ctx, userID, kind)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, json.RawMessage(payload), cacheTTL); err != nil {
			s.log.Warn("settings cache write failed", slog.String("key", key), sl.Err(err))
		}
	}
	return nil
}

func (s *Service) store(ctx context.Context, userID string, kind models.SettingsKind, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertSettings(ctx, userID, kind, payload); err != nil {
		return err
	}
	s.metrics.SettingsUpdated(string(kind))

	if s.cache != nil {
		key := settingsKey(kind, userID)
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.log.Warn("settings cache invalidation failed", slog.String("key", key), sl.Err(err))
		}
	}
	s.log.Info("profile settings updated", slog.String("user_id", userID), slog.String("kind", string(kind)))
	return nil
}
