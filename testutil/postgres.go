// Package testutil holds shared helpers for tests that need Postgres or a
// fake Twitch API.
package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/chat-tender/backend/db"
)

// SetupTestDB connects to TEST_PG_DSN and runs migrations. It skips the test
// if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// TruncateTables empties the given tables so a test starts from a known state.
func TruncateTables(t *testing.T, database *sql.DB, tables ...string) {
	t.Helper()
	for _, tbl := range tables {
		if _, err := database.Exec(`TRUNCATE TABLE ` + tbl); err != nil {
			t.Fatalf("truncate %s: %v", tbl, err)
		}
	}
}
