//go:build integration

package testdb

import "os"

// databaseURLEnvVars are checked in order for a test database URL.
var databaseURLEnvVars = []string{"CADENCE_TEST_DB_URL", "DATABASE_URL"}

// GetTestDatabaseURL returns the first configured test database URL, or an
// empty string when none is set.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLEnvVars {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no test database is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}
