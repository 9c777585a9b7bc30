// Package testkit holds shared helpers for package tests: an isolated,
// fully migrated in-memory database and JSON envelope assertions.
package testkit

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/shashiranjanraj/catalog/database/migrations"
	"github.com/shashiranjanraj/catalog/pkg/database"
	"github.com/shashiranjanraj/catalog/pkg/migration"
)

// NewDB returns a migrated SQLite database private to t.
// A single connection keeps the shared-cache memory database consistent
// across goroutines.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	pool := database.DefaultPool()
	pool.MaxOpen, pool.MaxIdle = 1, 1

	db, err := database.OpenGorm("sqlite", dsn, pool)
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = database.CloseGorm(db) })

	require.NoError(t, migration.New(db).Run(), "run migrations")
	return db
}
