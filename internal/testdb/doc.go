//go:build integration

// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests using it are compiled only with the integration build tag and are
// skipped when no database URL is configured:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.ResetTasks(t, db)
//	    store := postgres.NewPostgresTaskStore(db, nil)
//	    ...
//	}
//
// The schema is migrated once per test binary with the embedded goose
// migrations. Tests that share the tasks table must not run in parallel.
//
// # Environment Variables
//
// - CADENCE_TEST_DB_URL: preferred connection string
// - DATABASE_URL: fallback connection string
package testdb
