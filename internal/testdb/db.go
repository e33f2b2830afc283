//go:build integration

package testdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// GetTestDBWithT opens the test database, applies the migrations once per
// process and closes the connection when the test ends. The test is skipped
// when no database URL is configured.
func GetTestDBWithT(t *testing.T) *sqlx.DB {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skip("CADENCE_TEST_DB_URL or DATABASE_URL not set - skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, GetTestDatabaseURL(), postgres.DefaultPoolOptions(), nil)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, db.DB, postgres.MigrateUp, nil)
	})
	require.NoError(t, migrateErr, "failed to migrate test database")

	return db
}

// ResetTasks empties the tasks table and restarts its id sequence.
func ResetTasks(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec("TRUNCATE TABLE tasks RESTART IDENTITY CASCADE")
	require.NoError(t, err, "failed to truncate tasks")
}
