package store

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every embedded migration not yet recorded in schema_migrations.
// Files are applied in lexical order; 000 creates the bookkeeping table itself.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		version := strings.SplitN(name, "_", 2)[0]

		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil && version != "000" {
			return errors.Wrapf(err, "check migration %s", name)
		}
		if exists {
			continue
		}

		body, err := migrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}

		err = WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return errors.Wrapf(err, "execute %s", name)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
				return errors.Wrapf(err, "record %s", name)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied++
		logger.Info("applied migration", "migration", name)
	}

	logger.Debug("migrations complete", "total", len(files), "applied", applied)
	return nil
}
