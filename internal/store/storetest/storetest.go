package storetest

import (
	"context"
	"database/sql"
	"testing"

	"voice-console/internal/store"
	"voice-console/pkg/utils"
)

// OpenDB returns a migrated in-memory SQLite database closed at test end.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := utils.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(context.Background(), db, store.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
