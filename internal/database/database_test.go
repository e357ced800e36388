package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/models"
)

func TestNewSQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "foodgram.db"),
	}

	db, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(context.Background(), db))
	require.NoError(t, HealthCheck(context.Background(), db))

	user := models.User{
		Email:        "test@example.com",
		Username:     "tester",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hashedpassword",
	}
	require.NoError(t, db.Create(&user).Error)
	assert.NotZero(t, user.ID)

	dup := user
	dup.ID = 0
	dup.Username = "other"
	err = db.Create(&dup).Error
	assert.Error(t, err, "email must be unique")
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_init", migrations[0].Name)
	for _, m := range migrations {
		assert.NotEmpty(t, m.Up, m.Name)
		assert.NotEmpty(t, m.Down, m.Name)
	}
	assert.Contains(t, migrations[0].Up, "CREATE TABLE IF NOT EXISTS short_links")
}

func TestOpenSQLRequiresPostgres(t *testing.T) {
	_, err := OpenSQL(&config.Config{DBDriver: config.DriverSQLite})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db?_foreign_keys=1", SQLiteDSN("/tmp/x.db"))
}
