// Package storetest opens migrated SQLite databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/albachteng/crontick/internal/store"
)

// Open creates a migrated database file under t.TempDir and closes it on cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crontick_test.db")
	db, err := store.Open(context.Background(), path, store.DefaultOptions(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
