package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/campaign-dashboard/internal/migrations"
)

// TestDataFactory создаёт тестовые данные.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateProfile создаёт профиль бизнеса и возвращает его id.
func (f *TestDataFactory) CreateProfile(t *testing.T, userID, businessID, email, name string) string {
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO business_profiles
		(user_id, business_id, email, business_name, business_type, phone)
		VALUES ($1, $2, $3, $4, 'agency', '+1-555-0100') RETURNING id`,
		userID, businessID, email, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func setupTestDatabase(t *testing.T) *Storage {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, filepath.Join(root, "migrations")))

	return s
}
